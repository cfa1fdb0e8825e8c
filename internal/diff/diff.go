// Package diff compares the contents of two version records field by field
// and renders the old/new pairs in pluggable formats.
package diff

import (
	"encoding/json"
	"fmt"

	"github.com/vault-md/versionable/internal/version"
)

// FieldDiff is the old/new pair for one field. A side is nil when the
// field is absent from that record.
type FieldDiff struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// Changed reports whether the serialized forms of both sides differ.
func (d FieldDiff) Changed() bool {
	return Serialize(d.Old) != Serialize(d.New)
}

// Result is the ordered list of field pairs: every key of the first record
// in its order, then keys found only in the second record.
type Result []FieldDiff

// Get returns the pair for field.
func (r Result) Get(field string) (FieldDiff, bool) {
	for _, d := range r {
		if d.Field == field {
			return d, true
		}
	}
	return FieldDiff{}, false
}

// Fields lists field names in result order.
func (r Result) Fields() []string {
	out := make([]string, len(r))
	for i, d := range r {
		out[i] = d.Field
	}
	return out
}

// Changed drops the pairs whose sides serialize identically.
func (r Result) Changed() Result {
	out := make(Result, 0, len(r))
	for _, d := range r {
		if d.Changed() {
			out = append(out, d)
		}
	}
	return out
}

// Diff pairs the contents of a and b. Both records must belong to the
// same entity.
func Diff(a, b version.Record) (Result, error) {
	if a.Entity != b.Entity {
		return nil, &version.MismatchedEntityError{Expected: a.Entity, Actual: b.Entity}
	}
	return Contents(a.Contents, b.Contents), nil
}

// Contents pairs two field maps without any ownership check.
func Contents(a, b version.Contents) Result {
	out := make(Result, 0, a.Len()+b.Len())
	for _, key := range a.Keys() {
		out = append(out, FieldDiff{Field: key, Old: a.Value(key), New: b.Value(key)})
	}
	for _, key := range b.Keys() {
		if a.Has(key) {
			continue
		}
		out = append(out, FieldDiff{Field: key, Old: nil, New: b.Value(key)})
	}
	return out
}

// Serialize renders a field value as text: strings as-is, anything else,
// nil included, as JSON.
func Serialize(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}
