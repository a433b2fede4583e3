package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func record(kv ...any) *Record {
	r := NewRecord(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1].(Value))
	}
	return r
}

func TestValidator_InclusiveBounds(t *testing.T) {
	p := decodeProfile(t, `{
		"data_types": {"price": "float"},
		"validation": {"price_min": 0, "price_max": 1000000}
	}`)
	v := NewValidator(p)

	tests := []struct {
		name  string
		price Value
		ok    bool
	}{
		{"lower bound", FloatValue(0), true},
		{"upper bound", FloatValue(1000000), true},
		{"inside", FloatValue(99.5), true},
		{"below", FloatValue(-0.01), false},
		{"above", FloatValue(1000000.01), false},
		{"int above", IntValue(1000001), false},
		{"absent", Absent(), true},
		{"string not checked", StringValue("-5"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(record("price", tt.price))
			if tt.ok {
				assert.Empty(t, got)
				return
			}
			if assert.Len(t, got, 1) {
				assert.Equal(t, OutOfRange, got[0].Kind)
				assert.Equal(t, "price", got[0].Field)
			}
		})
	}
}

func TestValidator_RangeFields(t *testing.T) {
	t.Run("default applies to price fields", func(t *testing.T) {
		p := decodeProfile(t, `{"validation": {"price_min": 0}}`)
		got := NewValidator(p).Validate(record(
			"price_dimi_rub", FloatValue(-1),
			"stock", IntValue(-1),
		))
		if assert.Len(t, got, 1) {
			assert.Equal(t, "price_dimi_rub", got[0].Field)
		}
	})

	t.Run("explicit list", func(t *testing.T) {
		p := decodeProfile(t, `{"validation": {"price_min": 0, "range_fields": ["cost"]}}`)
		got := NewValidator(p).Validate(record(
			"price", FloatValue(-1),
			"cost", FloatValue(-1),
		))
		if assert.Len(t, got, 1) {
			assert.Equal(t, "cost", got[0].Field)
		}
	})

	t.Run("no bounds", func(t *testing.T) {
		p := decodeProfile(t, `{}`)
		assert.Empty(t, NewValidator(p).Validate(record("price", FloatValue(-1e9))))
	})
}

func TestValidator_Required(t *testing.T) {
	p := decodeProfile(t, `{"validation": {"required_columns": ["article", "name"], "price_max": 10}}`)
	v := NewValidator(p)

	got := v.Validate(record("price", FloatValue(11), "article", Absent()))
	assert.Equal(t, []string{
		"MissingRequired(article)",
		"MissingRequired(name)",
		"OutOfRange(price, 11, [-inf,10])",
	}, violationStrings(got))

	assert.Empty(t, v.Validate(record("article", IntValue(0), "name", StringValue("Болт"))))
}

func TestViolation_String(t *testing.T) {
	lo, hi := 0.0, 1000000.0
	v := Violation{Kind: OutOfRange, Field: "price", Value: FloatValue(2000000), Min: &lo, Max: &hi}
	assert.Equal(t, "OutOfRange(price, 2000000, [0,1000000])", v.String())

	v = Violation{Kind: OutOfRange, Field: "price", Value: FloatValue(-2.5), Min: &lo}
	assert.Equal(t, "OutOfRange(price, -2.5, [0,+inf])", v.String())

	assert.Equal(t, "MissingRequired(article)", Violation{Kind: MissingRequired, Field: "article"}.String())
}

func violationStrings(vs []Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
