package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Order(t *testing.T) {
	r := NewRecord(3)
	r.Set("price", FloatValue(99.5))
	r.Set("article", IntValue(123))
	r.Set("name", Absent())
	r.Set("price", FloatValue(10))

	assert.Equal(t, []string{"price", "article", "name"}, r.Fields(), "overwrite keeps position")

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"price":10,"article":123,"name":null}`, string(out))

	r.Delete("article")
	r.Delete("missing")
	assert.Equal(t, []string{"price", "name"}, r.Fields())
	assert.Equal(t, map[string]any{"price": 10.0, "name": nil}, r.Map())

	_, ok := r.Get("article")
	assert.False(t, ok)
	assert.True(t, r.Value("article").IsAbsent())
}

func TestValue_Kinds(t *testing.T) {
	assert.True(t, Absent().IsAbsent())
	assert.False(t, IntValue(0).IsAbsent(), "zero is a value")
	assert.False(t, StringValue("").IsAbsent(), "empty string is a value")

	d, ok := IntValue(5).Decimal()
	require.True(t, ok)
	assert.Equal(t, "5", d.String())
	_, ok = StringValue("5").Decimal()
	assert.False(t, ok)

	assert.Equal(t, "absent", Absent().Kind().String())
	assert.Equal(t, "1234.5", FloatValue(1234.5).String())
}
