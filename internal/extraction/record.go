package extraction

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Record is the normalized result of a lookup. Keys keep the order in which
// a tier first populated them and values are never empty.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]string)}
}

// Set stores value under field unless the value is blank or the field is
// already populated. It reports whether the record changed.
func (r *Record) Set(field, value string) bool {
	value = CleanText(value)
	if field == "" || value == "" {
		return false
	}
	if _, ok := r.values[field]; ok {
		return false
	}
	r.keys = append(r.keys, field)
	r.values[field] = value
	return true
}

// Get returns the value of field.
func (r *Record) Get(field string) (string, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Has reports whether field is populated.
func (r *Record) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

// Len is the number of populated fields.
func (r *Record) Len() int { return len(r.keys) }

// Fields returns the populated field names in insertion order.
func (r *Record) Fields() []string {
	return append([]string(nil), r.keys...)
}

// Map copies the record into a plain map.
func (r *Record) Map() map[string]string {
	m := make(map[string]string, len(r.keys))
	for _, k := range r.keys {
		m[k] = r.values[k]
	}
	return m
}

// Equal reports whether both records hold the same fields in the same order.
func (r *Record) Equal(other *Record) bool {
	if r.Len() != other.Len() {
		return false
	}
	for i, k := range r.keys {
		if other.keys[i] != k || other.values[k] != r.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON writes the record as a flat object in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONPair(&buf, k, r.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat object of strings, keeping document order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = *NewRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		r.Set(tok.(string), value)
	}
	_, err := dec.Token()
	return err
}

func (r *Record) String() string {
	parts := make([]string, 0, len(r.keys))
	for _, k := range r.keys {
		parts = append(parts, k+"="+r.values[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func writeJSONPair(buf *bytes.Buffer, key, value string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}
