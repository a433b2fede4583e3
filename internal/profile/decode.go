package profile

// decode.go turns a declarative profile document into a Profile.
//
// Documents are JSON (the legacy <name>_config.json files) or YAML. Both
// decode into the same document struct; column_mapping keeps its source
// order because mapping order is what callers see in summaries and what
// the resolver reports in diagnostics. Every problem is collected and
// returned at once as an *InvalidError so a broken profile fails at load
// time rather than during row processing.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"golang.org/x/text/unicode/norm"
)

// Format identifies the syntax of a profile document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type document struct {
	SupplierName    string            `json:"supplier_name" yaml:"supplier_name"`
	Description     string            `json:"description" yaml:"description"`
	ColumnMapping   orderedMapping    `json:"column_mapping" yaml:"column_mapping"`
	IgnoreColumns   []string          `json:"ignore_columns" yaml:"ignore_columns" validate:"dive,required"`
	Settings        settingsDoc       `json:"settings" yaml:"settings"`
	DataTypes       map[string]string `json:"data_types" yaml:"data_types" validate:"dive,keys,required,endkeys,oneof=int float string"`
	Validation      validationDoc     `json:"validation" yaml:"validation"`
	Preprocess      preprocessDoc     `json:"preprocess" yaml:"preprocess"`
	FilenameMarkers []string          `json:"filename_markers" yaml:"filename_markers" validate:"dive,required"`
}

type settingsDoc struct {
	SkipEmptyRows     *bool  `json:"skip_empty_rows" yaml:"skip_empty_rows"`
	HeaderRow         *int   `json:"header_row" yaml:"header_row"`
	AutoDetectHeaders bool   `json:"auto_detect_headers" yaml:"auto_detect_headers"`
	DropNAColumns     bool   `json:"drop_na_columns" yaml:"drop_na_columns"`
	Currency          string `json:"currency" yaml:"currency" validate:"max=16"`
}

type validationDoc struct {
	RequiredColumns []string `json:"required_columns" yaml:"required_columns" validate:"dive,required"`
	PriceMin        *float64 `json:"price_min" yaml:"price_min"`
	PriceMax        *float64 `json:"price_max" yaml:"price_max"`
	RangeFields     []string `json:"range_fields" yaml:"range_fields" validate:"dive,required"`
}

type preprocessDoc struct {
	CollapseSpaces bool                `json:"collapse_spaces" yaml:"collapse_spaces"`
	Clean          map[string]cleanDoc `json:"clean" yaml:"clean"`
	RowFilters     []filterDoc         `json:"row_filters" yaml:"row_filters" validate:"dive"`
	StampSupplier  string              `json:"stamp_supplier" yaml:"stamp_supplier"`
}

type cleanDoc struct {
	StripChars  string `json:"strip_chars" yaml:"strip_chars"`
	StripPrefix string `json:"strip_prefix" yaml:"strip_prefix"`
}

type filterDoc struct {
	Field string `json:"field" yaml:"field" validate:"required"`
	Op    string `json:"op" yaml:"op" validate:"oneof=gt gte lt lte eq ne"`
	Value any    `json:"value" yaml:"value"`
}

// filterValue splits a decoded filter value into its text and, for
// numbers, its numeric form. JSON numbers arrive as float64; YAML numbers
// as int64, uint64 or float64.
func filterValue(v any) (string, *float64, bool) {
	var f float64
	switch x := v.(type) {
	case string:
		return x, nil, true
	case float64:
		f = x
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case int:
		f = float64(x)
	default:
		return "", nil, false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), &f, true
}

// orderedMapping is a string→string object that remembers key order.
type orderedMapping []Mapping

func (m *orderedMapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("column_mapping must be an object")
	}
	var out orderedMapping
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("column_mapping[%q]: value must be a string", key)
		}
		out = append(out, Mapping{Raw: key, Canonical: value})
	}
	*m = out
	return nil
}

func (m *orderedMapping) UnmarshalYAML(unmarshal func(any) error) error {
	var items yaml.MapSlice
	if err := unmarshal(&items); err != nil {
		return err
	}
	out := make(orderedMapping, 0, len(items))
	for _, item := range items {
		value, ok := item.Value.(string)
		if !ok {
			return fmt.Errorf("column_mapping[%v]: value must be a string", item.Key)
		}
		out = append(out, Mapping{Raw: fmt.Sprint(item.Key), Canonical: value})
	}
	*m = out
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeHeader trims surrounding whitespace and applies Unicode NFC so
// that visually identical headers compare equal byte for byte.
func NormalizeHeader(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Decode parses a profile document and validates it.
// The returned profile is indexed and must not be modified afterwards.
func Decode(name string, format Format, data []byte) (*Profile, error) {
	var doc document
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = fmt.Errorf("unknown profile format %q", format)
	}
	if err != nil {
		return nil, &InvalidError{Name: name, Problems: []string{err.Error()}}
	}

	problems := validateDocument(&doc)
	if len(problems) > 0 {
		return nil, &InvalidError{Name: name, Problems: problems}
	}

	return build(name, &doc), nil
}

func validateDocument(doc *document) []string {
	var problems []string

	if err := validate.Struct(doc); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				problems = append(problems, describeFieldError(fe))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	seen := make(map[string]bool, len(doc.ColumnMapping))
	for _, m := range doc.ColumnMapping {
		raw := NormalizeHeader(m.Raw)
		if raw == "" {
			problems = append(problems, "column_mapping: raw header must not be blank")
			continue
		}
		if seen[raw] {
			problems = append(problems, fmt.Sprintf("column_mapping: duplicate raw header %q", raw))
		}
		seen[raw] = true
		if strings.TrimSpace(m.Canonical) == "" {
			problems = append(problems, fmt.Sprintf("column_mapping[%q]: canonical name must not be blank", raw))
		}
	}

	if hr := doc.Settings.HeaderRow; hr != nil && *hr < -1 {
		problems = append(problems, fmt.Sprintf("settings.header_row (%d) must be -1 or greater", *hr))
	}

	for field := range doc.Preprocess.Clean {
		if strings.TrimSpace(field) == "" {
			problems = append(problems, "preprocess.clean: field name must not be blank")
		}
	}
	for i, f := range doc.Preprocess.RowFilters {
		_, num, ok := filterValue(f.Value)
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("preprocess.row_filters[%d].value: must be a string or a number", i))
		case FilterOp(f.Op).Numeric() && num == nil:
			problems = append(problems, fmt.Sprintf("preprocess.row_filters[%d]: op %q needs a numeric value", i, f.Op))
		}
	}

	v := doc.Validation
	if v.PriceMin != nil && v.PriceMax != nil && *v.PriceMin > *v.PriceMax {
		problems = append(problems, fmt.Sprintf("validation.price_min (%g) must be <= price_max (%g)", *v.PriceMin, *v.PriceMax))
	}

	return problems
}

func describeFieldError(fe validator.FieldError) string {
	// Drop the Go struct name that prefixes every namespace.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "oneof":
		what := "value"
		if strings.HasPrefix(field, "data_types") {
			what = "type"
		}
		return fmt.Sprintf("%s: unrecognized %s %q (want one of: %s)", field, what, fe.Value(), fe.Param())
	case "required":
		return fmt.Sprintf("%s: must not be blank", field)
	case "max":
		return fmt.Sprintf("%s: longer than %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s: failed %q check", field, fe.Tag())
	}
}

func build(name string, doc *document) *Profile {
	p := &Profile{
		Name:         name,
		SupplierName: doc.SupplierName,
		Description:  doc.Description,
		Settings: Settings{
			SkipEmptyRows:     true,
			AutoDetectHeaders: doc.Settings.AutoDetectHeaders,
			DropNAColumns:     doc.Settings.DropNAColumns,
			Currency:          doc.Settings.Currency,
		},
		DataTypes: make(map[string]FieldType, len(doc.DataTypes)),
		Validation: Validation{
			RequiredColumns: doc.Validation.RequiredColumns,
			PriceMin:        doc.Validation.PriceMin,
			PriceMax:        doc.Validation.PriceMax,
			RangeFields:     doc.Validation.RangeFields,
		},
	}
	if doc.Settings.SkipEmptyRows != nil {
		p.Settings.SkipEmptyRows = *doc.Settings.SkipEmptyRows
	}
	if doc.Settings.HeaderRow != nil {
		p.Settings.HeaderRow = *doc.Settings.HeaderRow
	}

	p.ColumnMapping = make([]Mapping, len(doc.ColumnMapping))
	for i, m := range doc.ColumnMapping {
		p.ColumnMapping[i] = Mapping{Raw: NormalizeHeader(m.Raw), Canonical: strings.TrimSpace(m.Canonical)}
	}
	p.IgnoreColumns = make([]string, len(doc.IgnoreColumns))
	for i, c := range doc.IgnoreColumns {
		p.IgnoreColumns[i] = NormalizeHeader(c)
	}
	for field, t := range doc.DataTypes {
		p.DataTypes[field] = FieldType(t)
	}
	p.Preprocess = Preprocess{
		CollapseSpaces: doc.Preprocess.CollapseSpaces,
		StampSupplier:  strings.TrimSpace(doc.Preprocess.StampSupplier),
	}
	if len(doc.Preprocess.Clean) > 0 {
		p.Preprocess.Clean = make(map[string]CleanRule, len(doc.Preprocess.Clean))
		for field, c := range doc.Preprocess.Clean {
			p.Preprocess.Clean[strings.TrimSpace(field)] = CleanRule(c)
		}
	}
	for _, f := range doc.Preprocess.RowFilters {
		text, num, _ := filterValue(f.Value)
		p.Preprocess.RowFilters = append(p.Preprocess.RowFilters, RowFilter{
			Field:  strings.TrimSpace(f.Field),
			Op:     FilterOp(f.Op),
			Number: num,
			Text:   text,
		})
	}

	for _, m := range doc.FilenameMarkers {
		p.FilenameMarkers = append(p.FilenameMarkers, strings.ToUpper(strings.TrimSpace(m)))
	}

	p.index()
	return p
}
