package version

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestContentsPreservesInsertionOrder(t *testing.T) {
	c := NewContents()
	c.Set("title", "Hello")
	c.Set("content", "World")
	c.Set("author", "ann")
	c.Set("title", "Changed")

	if diff := cmp.Diff([]string{"title", "content", "author"}, c.Keys()); diff != "" {
		t.Fatalf("unexpected key order (-want +got):\n%s", diff)
	}
	if got := c.Value("title"); got != "Changed" {
		t.Fatalf("expected overwritten value, got %v", got)
	}
}

func TestContentsJSONRoundTripKeepsOrder(t *testing.T) {
	c := Pairs("zeta", 1, "alpha", "two", "mid", true, "nested", map[string]any{"a": 1.0})

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"zeta":1,"alpha":"two","mid":true,"nested":{"a":1}}`
	if string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}

	var decoded Contents
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if diff := cmp.Diff(c.Keys(), decoded.Keys()); diff != "" {
		t.Fatalf("key order lost (-want +got):\n%s", diff)
	}
	if !decoded.Equal(c) {
		t.Fatalf("decoded contents differ: %v vs %v", decoded.Map(), c.Map())
	}
}

func TestContentsJSONEscapesPathSyntaxInKeys(t *testing.T) {
	keys := []string{"a.b", "x|y", "#", "@at", "*", "q?", `back\slash`, "123", ":colon", ""}
	c := NewContents()
	for i, k := range keys {
		c.Set(k, i)
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var plain map[string]any
	if err := json.Unmarshal(data, &plain); err != nil {
		t.Fatalf("output is not a JSON object: %v (%s)", err, data)
	}
	if len(plain) != len(keys) {
		t.Fatalf("expected %d keys, got %d: %s", len(keys), len(plain), data)
	}

	var decoded Contents
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if diff := cmp.Diff(keys, decoded.Keys()); diff != "" {
		t.Fatalf("keys changed (-want +got):\n%s", diff)
	}
}

func TestContentsUnmarshalNullAndInvalid(t *testing.T) {
	var c Contents
	if err := json.Unmarshal([]byte("null"), &c); err != nil {
		t.Fatalf("null should decode: %v", err)
	}
	if !c.IsEmpty() {
		t.Fatalf("expected empty contents")
	}
	if err := c.UnmarshalJSON([]byte(`[1,2]`)); err == nil {
		t.Fatalf("expected error for array input")
	}
}

func TestContentsMergeLaterWins(t *testing.T) {
	base := Pairs("title", "a", "content", "b")
	over := Pairs("content", "B", "extra", "c")

	merged := base.Merge(over)
	if diff := cmp.Diff([]string{"title", "content", "extra"}, merged.Keys()); diff != "" {
		t.Fatalf("unexpected merge order (-want +got):\n%s", diff)
	}
	if merged.Value("content") != "B" {
		t.Fatalf("expected override to win, got %v", merged.Value("content"))
	}
	if base.Value("content") != "b" {
		t.Fatalf("merge must not mutate the receiver")
	}
}

func TestContentsOnlyWithoutDelete(t *testing.T) {
	c := Pairs("a", 1, "b", 2, "c", 3)

	if diff := cmp.Diff([]string{"a", "c"}, c.Only("c", "a").Keys()); diff != "" {
		t.Fatalf("Only (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "c"}, c.Without("b").Keys()); diff != "" {
		t.Fatalf("Without (-want +got):\n%s", diff)
	}

	c.Delete("a")
	c.Delete("missing")
	if diff := cmp.Diff([]string{"b", "c"}, c.Keys()); diff != "" {
		t.Fatalf("Delete (-want +got):\n%s", diff)
	}
}

func TestValuesEqualNormalisesNumbers(t *testing.T) {
	if !ValuesEqual(1, 1.0) {
		t.Fatalf("expected int and float64 of the same value to be equal")
	}
	if ValuesEqual("1", 1) {
		t.Fatalf("string and number must differ")
	}
	if !ValuesEqual(nil, nil) || ValuesEqual(nil, "") {
		t.Fatalf("unexpected nil comparison result")
	}
}
