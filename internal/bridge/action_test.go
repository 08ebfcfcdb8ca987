package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greetAction() Action {
	return Method1("greet", func(name string) (string, error) {
		return name, nil
	})
}

func TestSingleParameterBinding(t *testing.T) {
	tests := []struct {
		name    string
		payload Value
		want    any
		code    string
	}{
		{name: "scalar", payload: MustValue("Ada"), want: "Ada"},
		{name: "array of one", payload: MustValue([]string{"Ada"}), want: "Ada"},
		{name: "array takes first element", payload: MustValue([]string{"Ada", "Grace"}), want: "Ada"},
		{name: "number stringified", payload: MustValue(7), want: "7"},
		{name: "null", payload: Null(), code: CodeMissingArgument},
		{name: "empty array", payload: MustValue([]string{}), code: CodeMissingArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := greetAction().Call(tt.payload)
			if tt.code != "" {
				require.Error(t, err)
				var nce *NativeCallError
				require.ErrorAs(t, err, &nce)
				assert.Equal(t, "greet", nce.Action)
				assert.Equal(t, tt.code, Code(err))
				return
			}
			require.NoError(t, err)
			_, deferred := out.Future()
			assert.False(t, deferred)
			assert.Equal(t, tt.want, out.Value())
		})
	}
}

func TestWholeArrayParameter(t *testing.T) {
	sum := Method1("sum", func(nums []int) (int, error) {
		total := 0
		for _, n := range nums {
			total += n
		}
		return total, nil
	})

	out, err := sum.Call(MustValue([]int{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, 6, out.Value())

	_, err = sum.Call(MustValue(4))
	assert.Equal(t, CodeTypeMismatch, Code(err))
}

func TestMultiParameterBinding(t *testing.T) {
	add := Method2("add", [2]string{"a", "b"}, func(a, b int) (int, error) {
		return a + b, nil
	})

	payloads := map[string]Value{
		"positional":  MustValue([]int{2, 3}),
		"keyed":       MustValue(map[string]int{"a": 2, "b": 3}),
		"index keyed": MustValue(map[string]int{"0": 2, "1": 3}),
		"strings":     MustValue([]string{"2", "3"}),
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			out, err := add.Call(payload)
			require.NoError(t, err)
			assert.Equal(t, 5, out.Value())
		})
	}

	t.Run("short array", func(t *testing.T) {
		_, err := add.Call(MustValue([]int{2}))
		require.Error(t, err)
		var argErr *ArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, "b", argErr.Param)
		assert.Equal(t, 1, argErr.Index)
		assert.Equal(t, CodeMissingArgument, Code(err))
	})

	t.Run("scalar payload", func(t *testing.T) {
		_, err := add.Call(MustValue(2))
		assert.Equal(t, CodeMissingArgument, Code(err))
	})

	t.Run("optional trailing pointer", func(t *testing.T) {
		opt := Method2("opt", [2]string{"a", "b"}, func(a int, b *int) (int, error) {
			if b == nil {
				return a, nil
			}
			return a + *b, nil
		})
		out, err := opt.Call(MustValue([]int{4}))
		require.NoError(t, err)
		assert.Equal(t, 4, out.Value())
	})
}

func TestThreeParameterBinding(t *testing.T) {
	join := Method3("join", [3]string{"a", "sep", "b"}, func(a string, sep Char, b string) (string, error) {
		return a + string(sep) + b, nil
	})
	out, err := join.Call(MustValue(map[string]string{"a": "x", "sep": "-+", "b": "y"}))
	require.NoError(t, err)
	assert.Equal(t, "x-y", out.Value())
}

func TestVoidResults(t *testing.T) {
	called := 0
	actions := []Action{
		Proc0("p0", func() error { called++; return nil }),
		Proc1("p1", func(int) error { called++; return nil }),
		Proc2("p2", [2]string{"a", "b"}, func(int, int) error { called++; return nil }),
		Proc3("p3", [3]string{"a", "b", "c"}, func(int, int, int) error { called++; return nil }),
		Method0("m0", func() (Void, error) { called++; return Void{}, nil }),
	}

	for _, a := range actions {
		out, err := a.Call(MustValue([]int{1, 2, 3}))
		require.NoError(t, err, a.Name())
		assert.Nil(t, out.Value(), a.Name())
	}
	assert.Equal(t, len(actions), called)
}

func TestNoParametersIgnoresPayload(t *testing.T) {
	ping := Method0("ping", func() (string, error) { return "pong", nil })
	for _, payload := range []Value{Null(), MustValue(1), MustValue([]int{1})} {
		out, err := ping.Call(payload)
		require.NoError(t, err)
		assert.Equal(t, "pong", out.Value())
	}
}

func TestAsyncActions(t *testing.T) {
	later := Async1("later", func(n int) *Future {
		return Go(func() (any, error) {
			time.Sleep(5 * time.Millisecond)
			return n * 2, nil
		})
	})

	out, err := later.Call(MustValue(21))
	require.NoError(t, err)
	f, ok := out.Future()
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := f.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	t.Run("method returning future is deferred", func(t *testing.T) {
		m := Method0("m", func() (*Future, error) { return Resolved("x"), nil })
		out, err := m.Call(Null())
		require.NoError(t, err)
		_, ok := out.Future()
		assert.True(t, ok)
	})

	t.Run("nil future is immediate", func(t *testing.T) {
		a := Async0("nil", func() *Future { return nil })
		out, err := a.Call(Null())
		require.NoError(t, err)
		_, ok := out.Future()
		assert.False(t, ok)
	})
}

func TestActionFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("returned error", func(t *testing.T) {
		a := Method0("fail", func() (int, error) { return 0, boom })
		_, err := a.Call(Null())
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, ErrNativeCall)
		assert.Equal(t, CodeNativeCall, Code(err))
	})

	t.Run("panic", func(t *testing.T) {
		a := Proc0("panic", func() error { panic("kaboom") })
		_, err := a.Call(Null())
		require.Error(t, err)
		var nce *NativeCallError
		require.ErrorAs(t, err, &nce)
		assert.Contains(t, nce.Error(), "kaboom")
	})
}
