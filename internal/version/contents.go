// Package version holds the data model shared by the history engine: the
// ordered field map stored in every record, the record itself, the entity
// contract the engine talks to, and per-type versioning policy.
package version

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Contents is an ordered mapping of field name to value. Key order is the
// order in which fields were first set and survives JSON round trips.
type Contents struct {
	keys   []string
	values map[string]any
}

// NewContents returns an empty Contents.
func NewContents() Contents {
	return Contents{values: map[string]any{}}
}

// ContentsOf builds Contents from a plain map. Keys listed in order come
// first, remaining keys follow in sorted order.
func ContentsOf(values map[string]any, order ...string) Contents {
	c := NewContents()
	for _, key := range order {
		if value, ok := values[key]; ok {
			c.Set(key, value)
		}
	}
	rest := make([]string, 0, len(values))
	for key := range values {
		if !c.Has(key) {
			rest = append(rest, key)
		}
	}
	slices.Sort(rest)
	for _, key := range rest {
		c.Set(key, values[key])
	}
	return c
}

// Pairs builds Contents from alternating key/value arguments.
func Pairs(kv ...any) Contents {
	c := NewContents()
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		c.Set(key, kv[i+1])
	}
	return c
}

func (c *Contents) Set(key string, value any) {
	if c.values == nil {
		c.values = map[string]any{}
	}
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

func (c Contents) Get(key string) (any, bool) {
	value, ok := c.values[key]
	return value, ok
}

// Value returns the value for key or nil.
func (c Contents) Value(key string) any {
	return c.values[key]
}

func (c Contents) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

func (c *Contents) Delete(key string) {
	if _, ok := c.values[key]; !ok {
		return
	}
	delete(c.values, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i:i], c.keys[i+1:]...)
			break
		}
	}
}

// Keys returns field names in insertion order.
func (c Contents) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

func (c Contents) Len() int {
	return len(c.keys)
}

func (c Contents) IsEmpty() bool {
	return len(c.keys) == 0
}

func (c Contents) Clone() Contents {
	out := Contents{
		keys:   make([]string, len(c.keys)),
		values: make(map[string]any, len(c.values)),
	}
	copy(out.keys, c.keys)
	for k, v := range c.values {
		out.values[k] = v
	}
	return out
}

// Merge returns a copy of c overlaid with other. Values from other win and
// keys new to c are appended in other's order.
func (c Contents) Merge(other Contents) Contents {
	out := c.Clone()
	for _, key := range other.keys {
		out.Set(key, other.values[key])
	}
	return out
}

// Only returns the subset of c whose keys are listed, in c's order.
func (c Contents) Only(keys ...string) Contents {
	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	out := NewContents()
	for _, key := range c.keys {
		if _, ok := wanted[key]; ok {
			out.Set(key, c.values[key])
		}
	}
	return out
}

// Without returns c minus the listed keys.
func (c Contents) Without(keys ...string) Contents {
	out := c.Clone()
	for _, key := range keys {
		out.Delete(key)
	}
	return out
}

// Map returns a plain map copy. Key order is lost.
func (c Contents) Map() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold the same keys with equal values.
// Order is ignored.
func (c Contents) Equal(other Contents) bool {
	if c.Len() != other.Len() {
		return false
	}
	for _, key := range c.keys {
		v, ok := other.values[key]
		if !ok || !ValuesEqual(c.values[key], v) {
			return false
		}
	}
	return true
}

// ValuesEqual compares two field values by their JSON encoding so that
// decoded numbers compare equal to the integers they were written from.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	return bytes.Equal(ab, bb)
}

// MarshalJSON encodes the map as a JSON object preserving key order.
func (c Contents) MarshalJSON() ([]byte, error) {
	out := []byte("{}")
	for _, key := range c.keys {
		raw, err := json.Marshal(c.values[key])
		if err != nil {
			return nil, fmt.Errorf("contents: encode field %q: %w", key, err)
		}
		out, err = sjson.SetRawBytes(out, fieldPath(key), raw)
		if err != nil {
			return nil, fmt.Errorf("contents: set field %q: %w", key, err)
		}
	}
	return out, nil
}

// UnmarshalJSON decodes a JSON object, keeping member order. A JSON null
// decodes to an empty map.
func (c *Contents) UnmarshalJSON(data []byte) error {
	*c = NewContents()
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if !gjson.ValidBytes(trimmed) {
		return fmt.Errorf("contents: invalid JSON")
	}
	result := gjson.ParseBytes(trimmed)
	if !result.IsObject() {
		return fmt.Errorf("contents: expected JSON object, got %s", result.Type)
	}
	result.ForEach(func(key, value gjson.Result) bool {
		c.Set(key.String(), value.Value())
		return true
	})
	return nil
}

// fieldPath turns a field name into an sjson path addressing exactly one
// top-level member: the leading colon forces a string key and path syntax
// characters are escaped.
func fieldPath(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 1)
	b.WriteByte(':')
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '|', '#', '@', '*', '?', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(key[i])
	}
	return b.String()
}
