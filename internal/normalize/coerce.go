package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetnorm/internal/profile"
	"github.com/JonMunkholm/sheetnorm/internal/sheet"
	"github.com/shopspring/decimal"
)

// CoercionFailure describes a raw value that could not be converted to its
// field's declared type. The field becomes absent and the row continues.
type CoercionFailure struct {
	Field string
	Raw   string
	Type  profile.FieldType
}

func (e *CoercionFailure) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("cannot read %q as %s", e.Raw, e.Type)
	}
	return fmt.Sprintf("%s: cannot read %q as %s", e.Field, e.Raw, e.Type)
}

var (
	intPattern   = regexp.MustCompile(`^[+-]?\d+$`)
	floatPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
	commaGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+$`)
	dotGrouped   = regexp.MustCompile(`^[+-]?\d{1,3}(\.\d{3}){2,}$`)
)

// groupSeparators are dropped from numeric text before parsing: spaces,
// no-break spaces, thin spaces and the Swiss apostrophe.
var groupSeparators = strings.NewReplacer(
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"\u2009", "",
	"'", "",
)

// Coerce converts a raw cell to a Value of type t. Absent cells stay absent
// for every type. A failed conversion returns an absent Value and a
// *CoercionFailure without a field name.
func Coerce(raw sheet.Cell, t profile.FieldType) (Value, error) {
	if raw.IsAbsent() {
		return Absent(), nil
	}

	switch t {
	case profile.TypeInt:
		if raw.Kind == sheet.CellNumber {
			return intFromNumber(raw)
		}
		return parseInt(raw)
	case profile.TypeFloat:
		if raw.Kind == sheet.CellNumber {
			if math.IsNaN(raw.Number) || math.IsInf(raw.Number, 0) {
				return Absent(), failure(raw, t)
			}
			return FloatValue(raw.Number), nil
		}
		return parseFloat(raw)
	default:
		if raw.Kind == sheet.CellNumber {
			return StringValue(raw.String()), nil
		}
		return StringValue(strings.TrimSpace(raw.Text)), nil
	}
}

// CoerceValue converts an already typed value to t. Values that already have
// type t are returned unchanged, so coercion is idempotent.
func CoerceValue(v Value, t profile.FieldType) (Value, error) {
	if v.IsAbsent() {
		return v, nil
	}
	if vt, _ := v.FieldType(); vt == t {
		return v, nil
	}
	switch v.Kind() {
	case KindInt:
		i, _ := v.Int()
		return Coerce(sheet.Number(float64(i)), t)
	case KindFloat:
		f, _ := v.Float()
		return Coerce(sheet.Number(f), t)
	default:
		s, _ := v.Str()
		return Coerce(sheet.Text(s), t)
	}
}

func failure(raw sheet.Cell, t profile.FieldType) *CoercionFailure {
	return &CoercionFailure{Raw: raw.String(), Type: t}
}

// intFromNumber accepts numeric cells with no fractional part.
func intFromNumber(raw sheet.Cell) (Value, error) {
	f := raw.Number
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return Absent(), failure(raw, profile.TypeInt)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return Absent(), failure(raw, profile.TypeInt)
	}
	return IntValue(int64(f)), nil
}

// parseInt accepts optional sign, digits, and thousands grouping by spaces,
// apostrophes, commas (1,234,567) or dots (1.234.567).
func parseInt(raw sheet.Cell) (Value, error) {
	s := groupSeparators.Replace(strings.TrimSpace(raw.Text))
	switch {
	case commaGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case dotGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	if !intPattern.MatchString(s) {
		return Absent(), failure(raw, profile.TypeInt)
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Absent(), failure(raw, profile.TypeInt)
	}
	return IntValue(i), nil
}

// parseFloat accepts either '.' or ',' as the decimal separator. When both
// appear, the rightmost one is the decimal point and the other groups
// thousands.
func parseFloat(raw sheet.Cell) (Value, error) {
	s, ok := decimalText(groupSeparators.Replace(strings.TrimSpace(raw.Text)))
	if !ok || !floatPattern.MatchString(s) {
		return Absent(), failure(raw, profile.TypeFloat)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Absent(), failure(raw, profile.TypeFloat)
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) {
		return Absent(), failure(raw, profile.TypeFloat)
	}
	return FloatValue(f), nil
}

// decimalText rewrites s so that '.' is the only decimal separator.
func decimalText(s string) (string, bool) {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		dec, group := ".", ","
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			dec, group = ",", "."
		}
		if strings.Count(s, dec) > 1 {
			return "", false
		}
		s = strings.ReplaceAll(s, group, "")
		return strings.Replace(s, dec, ".", 1), true
	case commas == 1:
		return strings.Replace(s, ",", ".", 1), true
	case commas > 1:
		if !commaGrouped.MatchString(s) {
			return "", false
		}
		return strings.ReplaceAll(s, ",", ""), true
	case dots > 1:
		if !dotGrouped.MatchString(s) {
			return "", false
		}
		return strings.ReplaceAll(s, ".", ""), true
	default:
		return s, true
	}
}
