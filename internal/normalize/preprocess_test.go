package normalize

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/JonMunkholm/sheetnorm/internal/profile"
	"github.com/JonMunkholm/sheetnorm/internal/sheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stockListProfile = `{
	"supplier_name": "Витя",
	"column_mapping": {"Артикул": "article", "Наименование": "name", "Цена": "price", "Наличие": "balance"},
	"data_types": {"article": "int", "name": "string", "price": "float", "balance": "string"},
	"validation": {"required_columns": ["article"], "price_min": 0, "price_max": 1000000},
	"preprocess": {
		"collapse_spaces": true,
		"clean": {"article": {"strip_chars": "'", "strip_prefix": "000"}},
		"row_filters": [
			{"field": "price", "op": "gt", "value": 0.01},
			{"field": "balance", "op": "eq", "value": "Имеются в нал."}
		],
		"stamp_supplier": "supplier_name"
	}
}`

func TestNormalize_Preprocess(t *testing.T) {
	e := newEngine(t, map[string]string{"vitya": stockListProfile})
	g := sheet.Grid{
		Header: []string{"Артикул", "Наименование", "Цена", "Наличие"},
		Rows: textRows(
			[]string{"'000123", "Болт   М6  ", "10", "Имеются  в нал."},
			[]string{"124", "Гайка", "0", "Имеются в нал."},
			[]string{"125", "Шайба", "", "Имеются в нал."},
			[]string{"126", "Винт", "5", "Нет"},
			[]string{"", "Без артикула", "7", "Имеются в нал."},
		),
	}

	table, report, err := e.Normalize(context.Background(), g, "vitya")
	require.NoError(t, err)

	assert.Equal(t, 5, report.RowsRead)
	assert.Equal(t, 3, report.RowsSkipped)
	assert.Equal(t, 3, report.RowsFiltered)
	assert.Equal(t, 1, report.RowsAccepted)
	assert.Equal(t, 1, report.RowsRejected)
	assert.Equal(t, 3, report.CountKind(KindFiltered))

	assert.Equal(t, []string{"article", "name", "price", "balance", "supplier_name"}, table.Fields)
	require.Equal(t, 1, table.Len())
	out, err := json.Marshal(table.Rows[0].Record)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"article": 123,
		"name": "Болт М6",
		"price": 10,
		"balance": "Имеются в нал.",
		"supplier_name": "Витя"
	}`, string(out))

	zero := report.RowDiagnostics(1)
	require.Len(t, zero, 1)
	assert.Equal(t, KindFiltered, zero[0].Kind)
	assert.Equal(t, "price", zero[0].Field)
	assert.Equal(t, 2, zero[0].Column)

	stock := report.RowDiagnostics(3)
	require.Len(t, stock, 1)
	assert.Equal(t, "balance", stock[0].Field)

	missing := report.RowDiagnostics(4)
	require.Len(t, missing, 1)
	assert.Equal(t, KindMissingRequired, missing[0].Kind)
}

func TestPreprocessor_Clean(t *testing.T) {
	p := &profile.Profile{Preprocess: profile.Preprocess{
		CollapseSpaces: true,
		Clean:          map[string]profile.CleanRule{"article": {StripChars: "'", StripPrefix: "000"}},
	}}
	pp := NewPreprocessor(p)

	tests := []struct {
		name  string
		field string
		in    sheet.Cell
		want  sheet.Cell
	}{
		{"collapses spaces", "name", sheet.Text("  Болт \t М6 "), sheet.Text("Болт М6")},
		{"strips quotes and prefix", "article", sheet.Text("'000123"), sheet.Text("123")},
		{"prefix removed once", "article", sheet.Text("000000"), sheet.Text("000")},
		{"cleans to empty", "article", sheet.Text("'000"), sheet.Empty()},
		{"numbers untouched", "article", sheet.Number(7), sheet.Number(7)},
		{"no rule", "name", sheet.Text("'000"), sheet.Text("'000")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pp.Clean(tt.field, tt.in))
		})
	}
}

func TestRowFilter_Match(t *testing.T) {
	num := func(f float64) *float64 { return &f }

	tests := []struct {
		name   string
		filter profile.RowFilter
		value  Value
		want   bool
	}{
		{"gt passes", profile.RowFilter{Op: profile.OpGT, Number: num(0.01), Text: "0.01"}, FloatValue(0.02), true},
		{"gt at bound", profile.RowFilter{Op: profile.OpGT, Number: num(0.01), Text: "0.01"}, FloatValue(0.01), false},
		{"gte at bound", profile.RowFilter{Op: profile.OpGTE, Number: num(1), Text: "1"}, IntValue(1), true},
		{"lt", profile.RowFilter{Op: profile.OpLT, Number: num(5), Text: "5"}, IntValue(4), true},
		{"lte", profile.RowFilter{Op: profile.OpLTE, Number: num(5), Text: "5"}, IntValue(6), false},
		{"ordering on text", profile.RowFilter{Op: profile.OpGT, Number: num(0), Text: "0"}, StringValue("10"), false},
		{"absent fails gt", profile.RowFilter{Op: profile.OpGT, Number: num(0), Text: "0"}, Absent(), false},
		{"eq text", profile.RowFilter{Op: profile.OpEQ, Text: "Имеются в нал."}, StringValue("Имеются в нал."), true},
		{"eq number", profile.RowFilter{Op: profile.OpEQ, Number: num(3), Text: "3"}, FloatValue(3), true},
		{"absent fails eq", profile.RowFilter{Op: profile.OpEQ, Text: "x"}, Absent(), false},
		{"ne text", profile.RowFilter{Op: profile.OpNE, Text: "Ожидается"}, StringValue("Ожидается"), false},
		{"absent passes ne", profile.RowFilter{Op: profile.OpNE, Text: "Ожидается"}, Absent(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &profile.Profile{Preprocess: profile.Preprocess{RowFilters: []profile.RowFilter{tt.filter}}}
			pp := NewPreprocessor(p).(*profilePreprocessor)
			assert.Equal(t, tt.want, pp.filters[0].match(tt.value))
		})
	}
}

func TestPreprocessor_FilterSkipsMissingField(t *testing.T) {
	p := &profile.Profile{Preprocess: profile.Preprocess{RowFilters: []profile.RowFilter{
		{Field: "balance", Op: profile.OpEQ, Text: "Имеются в нал."},
	}}}
	rec := NewRecord(1)
	rec.Set("price", FloatValue(1))

	_, keep := NewPreprocessor(p).Keep(rec)
	assert.True(t, keep)
}

func TestPreprocessor_StampUsesProfileName(t *testing.T) {
	p := &profile.Profile{Name: "auto", Preprocess: profile.Preprocess{StampSupplier: "supplier"}}
	rec := NewRecord(1)
	NewPreprocessor(p).Stamp(rec)
	assert.Equal(t, StringValue("auto"), rec.Value("supplier"))
}
