package normalize

import (
	"encoding/json"
	"strconv"

	"github.com/JonMunkholm/sheetnorm/internal/profile"
	"github.com/shopspring/decimal"
)

// Kind is the runtime type of a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "absent"
	}
}

// Value is a typed field value. The zero Value is absent, which is distinct
// from zero and from the empty string.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Absent returns the absent value.
func Absent() Value { return Value{} }

// IntValue returns an int value.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue returns a float value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// StringValue returns a string value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsAbsent() bool  { return v.kind == KindAbsent }
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// Int returns the int payload.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the float payload.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Str returns the string payload.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Decimal returns a numeric value as an exact decimal.
func (v Value) Decimal() (decimal.Decimal, bool) {
	switch v.kind {
	case KindInt:
		return decimal.NewFromInt(v.i), true
	case KindFloat:
		return decimal.NewFromFloat(v.f), true
	default:
		return decimal.Decimal{}, false
	}
}

// FieldType returns the declared type this value satisfies.
func (v Value) FieldType() (profile.FieldType, bool) {
	switch v.kind {
	case KindInt:
		return profile.TypeInt, true
	case KindFloat:
		return profile.TypeFloat, true
	case KindString:
		return profile.TypeString, true
	default:
		return "", false
	}
}

// Interface returns the payload as int64, float64, string, or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	default:
		return ""
	}
}

// MarshalJSON writes absent as null and everything else as its payload.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
