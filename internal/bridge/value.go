package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
)

// Kind classifies a decoded JSON value.
type Kind uint8

const (
	KindNull Kind = iota
	KindScalar
	KindArray
	KindObject
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// codec keeps number literals intact so integer payloads never pass through float64.
var codec = sonic.Config{UseNumber: true}.Froze()

// Object is the passthrough target for raw JSON objects.
type Object map[string]any

// Array is the passthrough target for raw JSON arrays.
type Array []any

// Value is a JSON value decoded once at the channel boundary.
// The zero Value is null.
type Value struct {
	kind Kind
	v    any // nil, bool, json.Number, string, []any or map[string]any
}

// Null returns the null value.
func Null() Value {
	return Value{}
}

// Decode parses raw JSON into a Value.
func Decode(data []byte) (Value, error) {
	if len(data) == 0 {
		return Null(), nil
	}
	var raw any
	if err := codec.Unmarshal(data, &raw); err != nil {
		return Null(), fmt.Errorf("decode payload: %w", err)
	}
	return wrap(raw), nil
}

// ValueOf converts any JSON-representable Go value into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	}
	data, err := codec.Marshal(x)
	if err != nil {
		return Null(), fmt.Errorf("encode value: %w", err)
	}
	return Decode(data)
}

// MustValue is ValueOf that panics on error. Intended for literals and tests.
func MustValue(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}

// DecodeInto parses raw JSON into v with the bridge codec.
func DecodeInto(data []byte, v any) error {
	return codec.Unmarshal(data, v)
}

// Encode renders x as JSON.
func Encode(x any) ([]byte, error) {
	if v, ok := x.(Value); ok {
		x = v.v
	}
	return codec.Marshal(x)
}

func wrap(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Value{}
	case []any:
		return Value{kind: KindArray, v: t}
	case map[string]any:
		return Value{kind: KindObject, v: t}
	case float64:
		// only reachable for values built outside the decoder
		return Value{kind: KindScalar, v: json.Number(strconv.FormatFloat(t, 'g', -1, 64))}
	default:
		return Value{kind: KindScalar, v: t}
	}
}

// Kind reports the JSON kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null or absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Interface returns the decoded representation (numbers as json.Number).
func (v Value) Interface() any { return v.v }

// Len returns the number of array elements or object fields.
func (v Value) Len() int {
	switch t := v.v.(type) {
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	}
	return 0
}

// Index returns the i-th array element, or null when out of range.
func (v Value) Index(i int) Value {
	arr, ok := v.v.([]any)
	if !ok || i < 0 || i >= len(arr) {
		return Null()
	}
	return wrap(arr[i])
}

// Field returns the named object field.
func (v Value) Field(key string) (Value, bool) {
	obj, ok := v.v.(map[string]any)
	if !ok {
		return Null(), false
	}
	raw, ok := obj[key]
	if !ok {
		return Null(), false
	}
	return wrap(raw), true
}

// Keys returns the object field names in no particular order.
func (v Value) Keys() []string {
	obj, ok := v.v.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	return keys
}

// Text returns the string form used by scalar coercion: strings verbatim,
// numbers as their literal, everything else as JSON text.
func (v Value) Text() string {
	switch t := v.v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	data, err := codec.Marshal(v.v)
	if err != nil {
		return fmt.Sprint(v.v)
	}
	return string(data)
}

// String returns the JSON text of the value.
func (v Value) String() string {
	data, err := codec.Marshal(v.v)
	if err != nil {
		return fmt.Sprint(v.v)
	}
	return string(data)
}

// Plain returns the value with numbers converted to int64 or float64, the
// shape script engines and host transports expect.
func (v Value) Plain() any {
	return plain(v.v)
}

func plain(raw any) any {
	switch t := raw.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	default:
		return t
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return codec.Marshal(v.v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
