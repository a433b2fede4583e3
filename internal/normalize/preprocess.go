package normalize

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetnorm/internal/profile"
	"github.com/JonMunkholm/sheetnorm/internal/sheet"
	"github.com/shopspring/decimal"
)

// Preprocessor applies a profile's supplier cleanup to one row. Its three
// hooks run at fixed points of row processing: Clean on raw cells before
// coercion, Keep on the coerced record before validation, and Stamp on
// accepted records. Implementations must be safe for concurrent use.
type Preprocessor interface {
	Clean(field string, c sheet.Cell) sheet.Cell
	Keep(rec *Record) (Diagnostic, bool)
	Stamp(rec *Record)
}

// profilePreprocessor is the Preprocessor described by a profile's
// preprocess section.
type profilePreprocessor struct {
	cfg      profile.Preprocess
	supplier string
	filters  []rowFilter
}

type rowFilter struct {
	profile.RowFilter
	number decimal.Decimal
}

// NewPreprocessor builds the Preprocessor for p.
func NewPreprocessor(p *profile.Profile) Preprocessor {
	pp := &profilePreprocessor{
		cfg:      p.Preprocess,
		supplier: p.Summarize().SupplierName,
	}
	for _, f := range p.Preprocess.RowFilters {
		rf := rowFilter{RowFilter: f}
		if f.Number != nil {
			rf.number = decimal.NewFromFloat(*f.Number)
		}
		pp.filters = append(pp.filters, rf)
	}
	return pp
}

// Clean collapses runs of whitespace and applies the field's clean rule.
// Text that cleans down to nothing becomes an empty cell.
func (pp *profilePreprocessor) Clean(field string, c sheet.Cell) sheet.Cell {
	if c.Kind != sheet.CellText {
		return c
	}
	s := c.Text
	if pp.cfg.CollapseSpaces {
		s = strings.Join(strings.Fields(s), " ")
	}
	if rule, ok := pp.cfg.Clean[field]; ok {
		s = strings.TrimSpace(s)
		if rule.StripChars != "" {
			s = strings.Map(func(r rune) rune {
				if strings.ContainsRune(rule.StripChars, r) {
					return -1
				}
				return r
			}, s)
		}
		s = strings.TrimPrefix(s, rule.StripPrefix)
	}
	if strings.TrimSpace(s) == "" {
		return sheet.Empty()
	}
	return sheet.Text(s)
}

// Keep runs the row filters in order and reports the first one the record
// fails. Filters on fields missing from the record are not applied.
func (pp *profilePreprocessor) Keep(rec *Record) (Diagnostic, bool) {
	for _, f := range pp.filters {
		v, ok := rec.Get(f.Field)
		if !ok || f.match(v) {
			continue
		}
		return Diagnostic{
			Field:  f.Field,
			Kind:   KindFiltered,
			Reason: fmt.Sprintf("Filtered(%s %s %s, got %q)", f.Field, f.Op, f.Text, v.String()),
		}, false
	}
	return Diagnostic{}, true
}

// Stamp writes the supplier name into the stamp field.
func (pp *profilePreprocessor) Stamp(rec *Record) {
	if pp.cfg.StampSupplier != "" {
		rec.Set(pp.cfg.StampSupplier, StringValue(pp.supplier))
	}
}

// match compares v against the filter value. Absent values only pass "ne".
// Ordering operators need a numeric value; "eq" and "ne" compare numbers
// exactly when both sides are numeric and text otherwise.
func (f rowFilter) match(v Value) bool {
	if v.IsAbsent() {
		return f.Op == profile.OpNE
	}

	d, numeric := v.Decimal()
	numeric = numeric && f.Number != nil

	switch f.Op {
	case profile.OpEQ, profile.OpNE:
		var equal bool
		if numeric {
			equal = d.Equal(f.number)
		} else {
			equal = v.String() == f.Text
		}
		return equal == (f.Op == profile.OpEQ)
	}

	if !numeric {
		return false
	}
	cmp := d.Cmp(f.number)
	switch f.Op {
	case profile.OpGT:
		return cmp > 0
	case profile.OpGTE:
		return cmp >= 0
	case profile.OpLT:
		return cmp < 0
	default:
		return cmp <= 0
	}
}
