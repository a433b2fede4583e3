package normalize

import (
	"bytes"
	"encoding/json"
)

// Record is an ordered canonical-field → Value mapping. Field order is the
// order fields were first set; setting an existing field overwrites its
// value in place.
type Record struct {
	fields []string
	values map[string]Value
}

// NewRecord returns an empty record sized for n fields.
func NewRecord(n int) *Record {
	return &Record{
		fields: make([]string, 0, n),
		values: make(map[string]Value, n),
	}
}

// Set stores v under field.
func (r *Record) Set(field string, v Value) {
	if _, ok := r.values[field]; !ok {
		r.fields = append(r.fields, field)
	}
	r.values[field] = v
}

// Get returns the value of field and whether the field exists.
func (r *Record) Get(field string) (Value, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Value returns the value of field, absent when missing.
func (r *Record) Value(field string) Value {
	return r.values[field]
}

// Delete removes field, keeping the order of the rest.
func (r *Record) Delete(field string) {
	if _, ok := r.values[field]; !ok {
		return
	}
	delete(r.values, field)
	for i, f := range r.fields {
		if f == field {
			r.fields = append(r.fields[:i], r.fields[i+1:]...)
			break
		}
	}
}

// Fields returns the field names in order.
func (r *Record) Fields() []string {
	return append([]string(nil), r.fields...)
}

func (r *Record) Len() int { return len(r.fields) }

// Map returns the record as a plain map of payloads.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		out[f] = r.values[f].Interface()
	}
	return out
}

// MarshalJSON writes the record as a JSON object in field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.values[f].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
