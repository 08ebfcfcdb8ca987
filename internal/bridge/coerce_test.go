package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func TestCoerceScalars(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		got, err := Coerce[int](MustValue(42))
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	})

	t.Run("int narrows", func(t *testing.T) {
		got, err := Coerce[int8](MustValue(300))
		require.NoError(t, err)
		assert.Equal(t, int8(44), got)
	})

	t.Run("float truncates to int", func(t *testing.T) {
		got, err := Coerce[int](MustValue(3.9))
		require.NoError(t, err)
		assert.Equal(t, 3, got)
	})

	t.Run("string parses to float", func(t *testing.T) {
		got, err := Coerce[float64](MustValue("2.5"))
		require.NoError(t, err)
		assert.Equal(t, 2.5, got)
	})

	t.Run("string parses to int", func(t *testing.T) {
		got, err := Coerce[int64](MustValue("-7"))
		require.NoError(t, err)
		assert.Equal(t, int64(-7), got)
	})

	t.Run("number to string", func(t *testing.T) {
		got, err := Coerce[string](MustValue(12))
		require.NoError(t, err)
		assert.Equal(t, "12", got)
	})

	t.Run("array to string is json text", func(t *testing.T) {
		got, err := Coerce[string](MustValue([]int{1, 2}))
		require.NoError(t, err)
		assert.Equal(t, "[1,2]", got)
	})

	t.Run("bool from string", func(t *testing.T) {
		got, err := Coerce[bool](MustValue("true"))
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("bool from number", func(t *testing.T) {
		got, err := Coerce[bool](MustValue(0))
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("char takes first character", func(t *testing.T) {
		got, err := Coerce[Char](MustValue("héllo"))
		require.NoError(t, err)
		assert.Equal(t, Char('h'), got)
	})
}

func TestCoerceMismatch(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"word to int", func() error { _, err := Coerce[int](MustValue("abc")); return err }},
		{"object to int", func() error { _, err := Coerce[int](MustValue(map[string]int{"a": 1})); return err }},
		{"word to bool", func() error { _, err := Coerce[bool](MustValue("maybe")); return err }},
		{"string to slice", func() error { _, err := Coerce[[]int](MustValue("x")); return err }},
		{"array to object", func() error { _, err := Coerce[Object](MustValue([]int{1})); return err }},
		{"object to array", func() error { _, err := Coerce[Array](MustValue(map[string]int{"a": 1})); return err }},
		{"empty string to char", func() error { _, err := Coerce[Char](MustValue("")); return err }},
		{"negative to uint8", func() error { _, err := Coerce[uint8](MustValue(-1)); return err }},
		{"negative string to uint", func() error { _, err := Coerce[uint](MustValue("-3")); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTypeMismatch)
		})
	}
}

func TestCoerceNull(t *testing.T) {
	_, err := Coerce[int](Null())
	assert.ErrorIs(t, err, ErrMissingArgument)

	_, err = Coerce[string](Null())
	assert.ErrorIs(t, err, ErrMissingArgument)

	p, err := Coerce[*int](Null())
	require.NoError(t, err)
	assert.Nil(t, p)

	a, err := Coerce[any](Null())
	require.NoError(t, err)
	assert.Nil(t, a)

	v, err := Coerce[Value](Null())
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestCoercePointer(t *testing.T) {
	p, err := Coerce[*int](MustValue(5))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 5, *p)

	s, err := Coerce[*point](MustValue(map[string]int{"x": 1, "y": 2}))
	require.NoError(t, err)
	assert.Equal(t, &point{X: 1, Y: 2}, s)
}

func TestCoerceStructured(t *testing.T) {
	got, err := Coerce[point](MustValue(map[string]int{"x": 3, "y": 4}))
	require.NoError(t, err)
	assert.Equal(t, point{X: 3, Y: 4}, got)

	list, err := Coerce[[]int](MustValue([]int{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, list)

	fixed, err := Coerce[[2]string](MustValue([]string{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, [2]string{"a", "b"}, fixed)

	_, err = Coerce[point](MustValue([]int{1}))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestCoercePassthrough(t *testing.T) {
	obj, err := Coerce[Object](MustValue(map[string]string{"k": "v"}))
	require.NoError(t, err)
	assert.Equal(t, "v", obj["k"])

	arr, err := Coerce[Array](MustValue([]string{"a"}))
	require.NoError(t, err)
	assert.Equal(t, Array{"a"}, arr)

	plain, err := Coerce[any](MustValue(map[string]int{"a": 1}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(1)}, plain)
}
