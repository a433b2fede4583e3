package normalize

import (
	"fmt"

	"github.com/JonMunkholm/sheetnorm/internal/profile"
	"github.com/shopspring/decimal"
)

// ViolationKind identifies the rule a row broke.
type ViolationKind uint8

const (
	MissingRequired ViolationKind = iota + 1
	OutOfRange
)

func (k ViolationKind) String() string {
	switch k {
	case MissingRequired:
		return "MissingRequired"
	case OutOfRange:
		return "OutOfRange"
	default:
		return "Unknown"
	}
}

// Violation is one broken validation rule. Every violation rejects the row.
type Violation struct {
	Kind  ViolationKind
	Field string
	Value Value    // offending value, OutOfRange only
	Min   *float64 // inclusive bounds, OutOfRange only
	Max   *float64
}

// String renders the violation as MissingRequired(article) or
// OutOfRange(price, 2000000, [0,1000000]).
func (v Violation) String() string {
	if v.Kind == MissingRequired {
		return fmt.Sprintf("MissingRequired(%s)", v.Field)
	}
	return fmt.Sprintf("OutOfRange(%s, %s, [%s,%s])", v.Field, v.Value, bound(v.Min, "-inf"), bound(v.Max, "+inf"))
}

func bound(b *float64, open string) string {
	if b == nil {
		return open
	}
	return decimal.NewFromFloat(*b).String()
}

// Validator applies a profile's required-field and range rules to records.
type Validator struct {
	profile *profile.Profile
	min     *decimal.Decimal
	max     *decimal.Decimal
}

// NewValidator returns a validator for p.
func NewValidator(p *profile.Profile) *Validator {
	v := &Validator{profile: p}
	if b := p.Validation.PriceMin; b != nil {
		d := decimal.NewFromFloat(*b)
		v.min = &d
	}
	if b := p.Validation.PriceMax; b != nil {
		d := decimal.NewFromFloat(*b)
		v.max = &d
	}
	return v
}

// Validate returns the violations of rec: missing required fields in the
// order the profile lists them, then out-of-range values in field order.
// Bounds are inclusive and compared exactly.
func (v *Validator) Validate(rec *Record) []Violation {
	var out []Violation
	for _, name := range v.profile.Validation.RequiredColumns {
		if rec.Value(name).IsAbsent() {
			out = append(out, Violation{Kind: MissingRequired, Field: name})
		}
	}

	if !v.profile.Validation.HasBounds() {
		return out
	}
	for _, field := range rec.Fields() {
		val := rec.Value(field)
		t, ok := val.FieldType()
		if !ok || !v.profile.RangeChecked(field, t) {
			continue
		}
		d, _ := val.Decimal()
		if (v.min != nil && d.LessThan(*v.min)) || (v.max != nil && d.GreaterThan(*v.max)) {
			out = append(out, Violation{
				Kind:  OutOfRange,
				Field: field,
				Value: val,
				Min:   v.profile.Validation.PriceMin,
				Max:   v.profile.Validation.PriceMax,
			})
		}
	}
	return out
}
