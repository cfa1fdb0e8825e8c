package document

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vault-md/versionable/internal/version"
)

var _ version.Entity = (*Document)(nil)

func TestNewValidatesIdentity(t *testing.T) {
	if _, err := New("", "1"); err == nil {
		t.Fatalf("expected error for empty type")
	}
	if _, err := New("post", " "); err == nil {
		t.Fatalf("expected error for blank id")
	}
	doc, err := New("post", "1")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if doc.Exists() || doc.Ref() != (version.EntityRef{Type: "post", ID: "1"}) {
		t.Fatalf("unexpected new document: %+v", doc)
	}
}

func TestChangeSetTracksNewAndModifiedFields(t *testing.T) {
	doc := Hydrate("post", "1", version.Pairs("title", "a", "views", float64(1)), time.Now(), time.Now(), nil)
	if doc.Dirty() {
		t.Fatalf("hydrated document must be clean")
	}

	doc.Set("views", 1)
	if doc.Dirty() {
		t.Fatalf("numerically equal value must not be a change")
	}

	doc.Set("title", "b")
	doc.Set("tags", []any{"x"})
	if diff := cmp.Diff([]string{"title", "tags"}, doc.ChangeSet().Keys()); diff != "" {
		t.Fatalf("unexpected change set (-want +got):\n%s", diff)
	}
	if doc.BaselineState().Value("title") != "a" || doc.RawState().Value("title") != "b" {
		t.Fatalf("baseline and raw state must differ")
	}

	doc.SyncOriginal()
	if doc.Dirty() {
		t.Fatalf("document must be clean after SyncOriginal")
	}
}

func TestApplyStateAndAttribution(t *testing.T) {
	doc, _ := New("post", "1")
	doc.Fill(version.Pairs("title", "a", "content", "c"))
	doc.SyncOriginal()

	doc.ApplyState(version.Pairs("title", "old"))
	if diff := cmp.Diff(map[string]any{"title": "old", "content": "c"}, doc.Fields().Map()); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}

	if doc.AttributedUserID() != nil {
		t.Fatalf("expected no user by default")
	}
	doc.WithUser("alice")
	if id := doc.AttributedUserID(); id == nil || *id != "alice" {
		t.Fatalf("expected alice, got %v", id)
	}
	doc.WithUser("")
	if doc.AttributedUserID() != nil {
		t.Fatalf("empty user must clear attribution")
	}
}

func TestDeletionMarkInStates(t *testing.T) {
	deleted := time.Date(2024, 6, 1, 9, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	doc := Hydrate("post", "1", version.Pairs("title", "a"), time.Now(), time.Now(), nil)

	doc.DeletedAt = &deleted
	if diff := cmp.Diff(map[string]any{DeletedAtField: "2024-06-01T07:00:00Z"}, doc.ChangeSet().Map()); diff != "" {
		t.Fatalf("unexpected change set (-want +got):\n%s", diff)
	}
	if doc.RawState().Value(DeletedAtField) != "2024-06-01T07:00:00Z" || doc.BaselineState().Has(DeletedAtField) {
		t.Fatalf("expected the mark in the raw state only")
	}
	if doc.Fields().Has(DeletedAtField) {
		t.Fatalf("the deletion mark must not become a field")
	}

	doc.SyncOriginal()
	if doc.Dirty() {
		t.Fatalf("document must be clean after SyncOriginal")
	}
	if !doc.BaselineState().Has(DeletedAtField) || doc.BaselineDeletedAt() == nil {
		t.Fatalf("expected the persisted mark in the baseline")
	}

	doc.DeletedAt = nil
	changes := doc.ChangeSet()
	if !changes.Has(DeletedAtField) || changes.Value(DeletedAtField) != nil {
		t.Fatalf("expected a restore to show a null mark, got %v", changes.Map())
	}

	doc.ApplyState(version.Pairs("title", "b", DeletedAtField, "2024-01-01T00:00:00Z"))
	if doc.Fields().Has(DeletedAtField) || doc.DeletedAt != nil {
		t.Fatalf("ApplyState must leave the deletion mark alone")
	}
}
