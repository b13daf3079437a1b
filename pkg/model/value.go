package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ValueKind identifies which variant a Value holds.
type ValueKind int

const (
	KindUndefined ValueKind = iota // zero value, "value" key absent
	KindNull
	KindString
	KindNumber
	KindBool
	KindDate
)

func (k ValueKind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is the closed set of shapes a field or condition value can take.
// The zero Value is undefined.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	t    time.Time
}

var (
	Undefined = Value{}
	Null      = Value{kind: KindNull}
)

func String(s string) Value     { return Value{kind: KindString, str: s} }
func Number(f float64) Value    { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Date(t time.Time) Value    { return Value{kind: KindDate, t: t} }
func (v Value) Kind() ValueKind { return v.kind }

// IsNullish reports whether v is null or undefined.
func (v Value) IsNullish() bool {
	return v.kind == KindNull || v.kind == KindUndefined
}

func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) BoolVal() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) Time() (time.Time, bool) {
	return v.t, v.kind == KindDate
}

// ComparableString renders v for text comparison. It returns false for
// null and undefined, which have no textual form.
func (v Value) ComparableString() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return formatNumber(v.num), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	case KindDate:
		return v.t.Format(time.RFC3339Nano), true
	}
	return "", false
}

// Interface returns v as a plain Go value, the way encoding/json would
// decode it. Dates become RFC 3339 strings.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindDate:
		return v.t.Format(time.RFC3339Nano)
	}
	return nil
}

func (v Value) String() string {
	if s, ok := v.ComparableString(); ok {
		return s
	}
	return v.kind.String()
}

// ValueOf converts a decoded JSON or driver value into a Value.
// Unsupported shapes (maps, slices, structs) become undefined so they never
// match anything by accident.
func ValueOf(x interface{}) Value {
	switch val := x.(type) {
	case nil:
		return Null
	case Value:
		return val
	case string:
		return String(val)
	case bool:
		return Bool(val)
	case float64:
		return Number(val)
	case float32:
		return Number(float64(val))
	case int:
		return Number(float64(val))
	case int32:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case uint:
		return Number(float64(val))
	case uint32:
		return Number(float64(val))
	case uint64:
		return Number(float64(val))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return String(val.String())
		}
		return Number(f)
	case time.Time:
		return Date(val)
	case *time.Time:
		if val == nil {
			return Null
		}
		return Date(*val)
	case *string:
		if val == nil {
			return Null
		}
		return String(*val)
	case *int64:
		if val == nil {
			return Null
		}
		return Number(float64(*val))
	}
	return Undefined
}

// IsZero reports whether v is undefined. Struct fields tagged omitzero
// leave the key out, and a missing key decodes back to undefined.
func (v Value) IsZero() bool {
	return v.kind == KindUndefined
}

// MarshalJSON encodes undefined as null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a scalar JSON value. Objects and arrays are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.(type) {
	case nil, string, float64, bool:
		*v = ValueOf(raw)
		return nil
	}
	return fmt.Errorf("unsupported value type: %T", raw)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
