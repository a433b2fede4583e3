// Package profile loads and indexes supplier configuration profiles.
// A Profile is the runtime schema for one supplier's spreadsheet layout:
// it maps raw headers to canonical fields, declares field types, and
// carries the validation rules applied to every row.
package profile

import (
	"maps"
	"slices"
	"strings"
)

// FieldType is the declared semantic type of a canonical field.
type FieldType string

const (
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeString FieldType = "string"
)

// Valid reports whether t is one of the recognized type names.
func (t FieldType) Valid() bool {
	switch t {
	case TypeInt, TypeFloat, TypeString:
		return true
	}
	return false
}

// Numeric reports whether values of this type take part in range checks.
func (t FieldType) Numeric() bool {
	return t == TypeInt || t == TypeFloat
}

// Mapping is one raw header → canonical field entry, kept in source order.
type Mapping struct {
	Raw       string
	Canonical string
}

// Settings holds the per-profile processing flags.
type Settings struct {
	SkipEmptyRows     bool   // Skip rows whose cells are all absent (default: true)
	HeaderRow         int    // Index of the header row; negative means no header (default: 0)
	AutoDetectHeaders bool   // Infer fields for placeholder headers (default: false)
	DropNAColumns     bool   // Drop output fields absent in every accepted row (default: false)
	Currency          string // Informational only
}

// Validation holds the row validation rules of a profile.
type Validation struct {
	RequiredColumns []string

	// PriceMin and PriceMax are inclusive bounds; nil means unbounded on that side.
	PriceMin *float64
	PriceMax *float64

	// RangeFields names the fields the bounds apply to. When empty, the
	// bounds apply to every numeric field whose name contains "price".
	RangeFields []string
}

// HasBounds reports whether at least one range bound is declared.
func (v Validation) HasBounds() bool {
	return v.PriceMin != nil || v.PriceMax != nil
}

// FilterOp is the comparison of a row filter.
type FilterOp string

const (
	OpGT  FilterOp = "gt"
	OpGTE FilterOp = "gte"
	OpLT  FilterOp = "lt"
	OpLTE FilterOp = "lte"
	OpEQ  FilterOp = "eq"
	OpNE  FilterOp = "ne"
)

// Numeric reports whether the operator orders values and so needs a number.
func (op FilterOp) Numeric() bool {
	switch op {
	case OpGT, OpGTE, OpLT, OpLTE:
		return true
	}
	return false
}

// CleanRule rewrites a field's raw text before coercion.
type CleanRule struct {
	StripChars  string // Every rune listed is removed
	StripPrefix string // Removed once, after StripChars
}

// RowFilter keeps a row only when Field compares true against the filter
// value. Number is set for numeric values; Text always holds the value as
// written. Filters on fields the sheet does not have are not applied.
type RowFilter struct {
	Field  string
	Op     FilterOp
	Number *float64
	Text   string
}

// Preprocess is the supplier cleanup applied to every row: text cleaning
// before coercion, row filters before validation, and a supplier stamp on
// accepted rows.
type Preprocess struct {
	CollapseSpaces bool
	Clean          map[string]CleanRule
	RowFilters     []RowFilter

	// StampSupplier names the output field that receives the supplier
	// name; empty disables stamping.
	StampSupplier string
}

// Profile is a parsed supplier configuration. Profiles are shared by every
// run that uses them and must not be modified after Decode; the accessors
// Mappings, Ignores and Types return copies for callers that need to hand
// the collections out.
type Profile struct {
	Name         string // Registry key, e.g. "vitya"
	SupplierName string
	Description  string

	ColumnMapping []Mapping
	IgnoreColumns []string
	Settings      Settings
	DataTypes     map[string]FieldType
	Validation    Validation
	Preprocess    Preprocess

	// FilenameMarkers are upper-case substrings that select this profile
	// when a file is normalized without an explicit profile name.
	FilenameMarkers []string

	mapping map[string]string
	ignore  map[string]struct{}
}

// index builds the lookup tables used by the header resolver.
func (p *Profile) index() {
	p.mapping = make(map[string]string, len(p.ColumnMapping))
	for _, m := range p.ColumnMapping {
		p.mapping[m.Raw] = m.Canonical
	}
	p.ignore = make(map[string]struct{}, len(p.IgnoreColumns))
	for _, c := range p.IgnoreColumns {
		p.ignore[c] = struct{}{}
	}
}

// Mappings returns a copy of the column mapping in source order.
func (p *Profile) Mappings() []Mapping {
	return slices.Clone(p.ColumnMapping)
}

// Ignores returns a copy of the ignore list.
func (p *Profile) Ignores() []string {
	if p.IgnoreColumns == nil {
		return []string{}
	}
	return slices.Clone(p.IgnoreColumns)
}

// Types returns a copy of the declared field types.
func (p *Profile) Types() map[string]FieldType {
	if p.DataTypes == nil {
		return map[string]FieldType{}
	}
	return maps.Clone(p.DataTypes)
}

// Canonical returns the canonical field mapped from a normalized raw header.
// Profiles built by hand without Decode fall back to a linear scan.
func (p *Profile) Canonical(raw string) (string, bool) {
	if p.mapping == nil {
		for _, m := range p.ColumnMapping {
			if m.Raw == raw {
				return m.Canonical, true
			}
		}
		return "", false
	}
	name, ok := p.mapping[raw]
	return name, ok
}

// Ignored reports whether a normalized raw header or positional name is in
// the profile's ignore list.
func (p *Profile) Ignored(name string) bool {
	if p.ignore == nil {
		for _, c := range p.IgnoreColumns {
			if c == name {
				return true
			}
		}
		return false
	}
	_, ok := p.ignore[name]
	return ok
}

// TypeOf returns the declared type of a canonical field.
// Fields without a declaration are treated as strings.
func (p *Profile) TypeOf(field string) FieldType {
	if t, ok := p.DataTypes[field]; ok {
		return t
	}
	return TypeString
}

// Required reports whether field is listed in validation.required_columns.
func (p *Profile) Required(field string) bool {
	for _, r := range p.Validation.RequiredColumns {
		if r == field {
			return true
		}
	}
	return false
}

// RangeChecked reports whether the range bounds apply to field of type t.
func (p *Profile) RangeChecked(field string, t FieldType) bool {
	if !p.Validation.HasBounds() || !t.Numeric() {
		return false
	}
	if len(p.Validation.RangeFields) > 0 {
		for _, f := range p.Validation.RangeFields {
			if f == field {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(field), "price")
}

// Summary is the display form of a profile.
type Summary struct {
	Name            string   `json:"name"`
	SupplierName    string   `json:"supplierName"`
	Description     string   `json:"description,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	MappedColumns   int      `json:"mappedColumns"`
	IgnoredColumns  int      `json:"ignoredColumns"`
	RequiredColumns []string `json:"requiredColumns"`
	PriceMin        *float64 `json:"priceMin,omitempty"`
	PriceMax        *float64 `json:"priceMax,omitempty"`
	AutoDetect      bool     `json:"autoDetect"`
}

// Summarize returns the display summary of the profile.
func (p *Profile) Summarize() Summary {
	supplier := p.SupplierName
	if supplier == "" {
		supplier = p.Name
	}
	required := p.Validation.RequiredColumns
	if required == nil {
		required = []string{}
	}
	return Summary{
		Name:            p.Name,
		SupplierName:    supplier,
		Description:     p.Description,
		Currency:        p.Settings.Currency,
		MappedColumns:   len(p.ColumnMapping),
		IgnoredColumns:  len(p.IgnoreColumns),
		RequiredColumns: required,
		PriceMin:        p.Validation.PriceMin,
		PriceMax:        p.Validation.PriceMax,
		AutoDetect:      p.Settings.AutoDetectHeaders,
	}
}
