package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// Value is the result of validating one field. The zero Value means the
// field was not supplied.
type Value struct {
	v        any
	supplied bool
}

// Of wraps a validated value.
func Of(v any) Value {
	return Value{v: v, supplied: true}
}

// Supplied reports whether the field was present in the input, even if null.
func (v Value) Supplied() bool {
	return v.supplied
}

// Empty reports whether the field is absent or holds a falsy value.
func (v Value) Empty() bool {
	return !v.supplied || IsFalsy(v.v)
}

// Raw returns the validated value, or nil when absent.
func (v Value) Raw() any {
	return v.v
}

// String returns the string form of the value, or "" when absent or null.
func (v Value) String() string {
	if !v.supplied || v.v == nil {
		return ""
	}
	return StringForm(v.v)
}

// Time returns the coerced date of a Date or Birthday field.
func (v Value) Time() (time.Time, bool) {
	t, ok := v.v.(time.Time)
	return t, ok
}

// Gender returns the coerced value of a Gender field.
func (v Value) Gender() (Gender, bool) {
	g, ok := v.v.(Gender)
	return g, ok
}

// Map returns the object held by an Arguments field. A null or absent field
// yields nil, which reads as an empty object.
func (v Value) Map() map[string]any {
	m, _ := v.v.(map[string]any)
	return m
}

// IDs returns the identifiers held by a ClientIDs field.
func (v Value) IDs() []int64 {
	ids, _ := v.v.([]int64)
	return ids
}

// IsFalsy reports whether v counts as empty: null, empty string, numeric
// zero, false, or an empty collection.
func IsFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	case time.Time:
		return x.IsZero()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// StringForm renders a scalar the way it is matched against field patterns.
// JSON numbers keep their literal text so 71234567890 is not rendered in
// exponent form.
func StringForm(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isNumber(v any) bool {
	if _, ok := v.(json.Number); ok {
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// toInt64 converts an integer-like value. Floats are accepted only when
// integral, for callers that decoded JSON without UseNumber.
func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int64(x), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}
