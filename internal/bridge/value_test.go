package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKinds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
	}{
		{"empty is null", "", KindNull},
		{"null", "null", KindNull},
		{"string", `"Ada"`, KindScalar},
		{"number", "42", KindScalar},
		{"bool", "true", KindScalar},
		{"array", "[1,2]", KindArray},
		{"object", `{"a":1}`, KindObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestValueKeepsIntegerPrecision(t *testing.T) {
	v, err := Decode([]byte("9007199254740993"))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), v.Interface())
	assert.Equal(t, int64(9007199254740993), v.Plain())
}

func TestValueAccessors(t *testing.T) {
	v := MustValue(map[string]any{"name": "Ada", "tags": []string{"x", "y"}})

	name, ok := v.Field("name")
	require.True(t, ok)
	assert.Equal(t, "Ada", name.Text())

	_, ok = v.Field("missing")
	assert.False(t, ok)

	tags, _ := v.Field("tags")
	assert.Equal(t, 2, tags.Len())
	assert.Equal(t, "y", tags.Index(1).Text())
	assert.True(t, tags.Index(5).IsNull())
	assert.ElementsMatch(t, []string{"name", "tags"}, v.Keys())
}

func TestValueText(t *testing.T) {
	assert.Equal(t, "12", MustValue(12).Text())
	assert.Equal(t, "true", MustValue(true).Text())
	assert.Equal(t, "[1,2]", MustValue([]int{1, 2}).Text())
	assert.Equal(t, "null", Null().Text())
}

func TestValuePlain(t *testing.T) {
	v := MustValue(map[string]any{"i": 3, "f": 1.5, "list": []any{1, "a"}})
	assert.Equal(t, map[string]any{
		"i":    int64(3),
		"f":    1.5,
		"list": []any{int64(1), "a"},
	}, v.Plain())
}

func TestValueRoundTrip(t *testing.T) {
	in := `{"action":"greet","data":["Ada",1,null,{"k":true}]}`
	v, err := Decode([]byte(in))
	require.NoError(t, err)

	out, err := Encode(v)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))

	var back Value
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, v.String(), back.String())
}
