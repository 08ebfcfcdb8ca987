package bridge

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"unicode/utf8"
)

// Char is a single-character parameter. It takes the first character of the
// payload's string form.
type Char rune

var (
	valueType  = reflect.TypeFor[Value]()
	objectType = reflect.TypeFor[Object]()
	arrayType  = reflect.TypeFor[Array]()
	charType   = reflect.TypeFor[Char]()
)

// Coerce converts v into a T.
//
// Scalars follow narrowing/widening conversion for numbers and parsing for
// strings. Slices and arrays require a JSON array. Value, Object and Array are
// passed through when the JSON kind matches. Everything else is decoded
// structurally. Null is only accepted by pointer, interface and Value targets.
func Coerce[T any](v Value) (T, error) {
	var zero T
	out, err := coerce(v, reflect.TypeFor[T]())
	if err != nil || out == nil {
		return zero, err
	}
	return out.(T), nil
}

func nullable(t reflect.Type) bool {
	if t == valueType {
		return true
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface:
		return true
	}
	return false
}

// wholePayload reports whether a single-parameter action receives an array
// payload as a whole rather than its first element.
func wholePayload(t reflect.Type) bool {
	if t == valueType || t == arrayType {
		return true
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

func mismatch(v Value, t reflect.Type, detail string) error {
	if detail != "" {
		return fmt.Errorf("%w: cannot convert %s to %s: %s", ErrTypeMismatch, v.Kind(), t, detail)
	}
	return fmt.Errorf("%w: cannot convert %s to %s", ErrTypeMismatch, v.Kind(), t)
}

func coerce(v Value, t reflect.Type) (any, error) {
	if t == valueType {
		return v, nil
	}
	if v.IsNull() {
		if nullable(t) {
			return reflect.Zero(t).Interface(), nil
		}
		return nil, ErrMissingArgument
	}

	switch t {
	case charType:
		r, size := utf8.DecodeRuneInString(v.Text())
		if size == 0 {
			return nil, mismatch(v, t, "empty string")
		}
		return Char(r), nil
	case objectType:
		if obj, ok := v.v.(map[string]any); ok {
			return Object(obj), nil
		}
		return nil, mismatch(v, t, "")
	case arrayType:
		if arr, ok := v.v.([]any); ok {
			return Array(arr), nil
		}
		return nil, mismatch(v, t, "")
	}

	rv := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		if b, ok := v.v.(bool); ok {
			rv.SetBool(b)
			break
		}
		if v.Kind() != KindScalar {
			return nil, mismatch(v, t, "")
		}
		b, err := strconv.ParseBool(v.Text())
		if err != nil {
			return nil, mismatch(v, t, err.Error())
		}
		rv.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := toInt(v)
		if err != nil {
			return nil, mismatch(v, t, err.Error())
		}
		rv.SetInt(i)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := toInt(v)
		if err != nil {
			return nil, mismatch(v, t, err.Error())
		}
		if i < 0 {
			return nil, mismatch(v, t, "negative value")
		}
		rv.SetUint(uint64(i))

	case reflect.Float32, reflect.Float64:
		f, err := toFloat(v)
		if err != nil {
			return nil, mismatch(v, t, err.Error())
		}
		rv.SetFloat(f)

	case reflect.String:
		rv.SetString(v.Text())

	case reflect.Pointer:
		inner, err := coerce(v, t.Elem())
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(t.Elem())
		if inner != nil {
			ptr.Elem().Set(reflect.ValueOf(inner))
		}
		return ptr.Interface(), nil

	case reflect.Interface:
		if t.NumMethod() == 0 {
			return v.Plain(), nil
		}
		return nil, mismatch(v, t, "")

	case reflect.Slice, reflect.Array:
		if v.Kind() != KindArray {
			return nil, mismatch(v, t, "expects an array")
		}
		return decodeInto(v, t)

	default:
		return decodeInto(v, t)
	}
	return rv.Interface(), nil
}

// decodeInto is the structured fallback: re-encode and decode into t.
func decodeInto(v Value, t reflect.Type) (any, error) {
	data, err := codec.Marshal(v.v)
	if err != nil {
		return nil, mismatch(v, t, err.Error())
	}
	ptr := reflect.New(t)
	if err := codec.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, mismatch(v, t, err.Error())
	}
	return ptr.Elem().Interface(), nil
}

func toInt(v Value) (int64, error) {
	switch t := v.v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	}
	return 0, fmt.Errorf("not a number")
}

func toFloat(v Value) (float64, error) {
	switch t := v.v.(type) {
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(t, 64)
	}
	return 0, fmt.Errorf("not a number")
}
