package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vault-md/versionable/internal/database"
	"github.com/vault-md/versionable/internal/document"
	"github.com/vault-md/versionable/internal/history"
	"github.com/vault-md/versionable/internal/version"
	"github.com/vault-md/versionable/internal/versioning"
)

func setupServiceDB(t *testing.T) *database.Context {
	t.Helper()
	ctx, err := database.CreateDatabase(filepath.Join(t.TempDir(), "versions.db"))
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}

	t.Cleanup(func() {
		if err := database.CloseDatabase(ctx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})

	return ctx
}

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func setupService(t *testing.T, policy version.Policy, keep int) (*DocumentService, *history.History) {
	t.Helper()
	dbCtx := setupServiceDB(t)

	registry := version.NewRegistry()
	if err := registry.Register("post", policy); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	clk := &testClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	versions := database.NewVersionRepository(dbCtx)
	h := history.New(versions, history.WithClock(clk.now))
	ctrl := versioning.New(registry, h, versioning.WithClock(clk.now), versioning.WithKeepVersions(keep))
	return NewDocumentService(dbCtx, versions, ctrl, WithClock(clk.now)), h
}

func newPost(t *testing.T, id string, kv ...any) *document.Document {
	t.Helper()
	doc, err := document.New("post", id)
	if err != nil {
		t.Fatalf("document.New failed: %v", err)
	}
	doc.Fill(version.Pairs(kv...))
	return doc
}

func listIDs(t *testing.T, h *history.History, ref version.EntityRef, opts history.ListOptions) []string {
	t.Helper()
	records, err := h.List(context.Background(), ref, opts)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestDocumentServiceSaveRecordsInitialAndUpdates(t *testing.T) {
	ctx := context.Background()
	svc, h := setupService(t, version.DefaultPolicy(), 0)

	doc := newPost(t, "1", "title", "Hello", "body", "World")
	initial, err := svc.Save(ctx, doc)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if initial == nil || !initial.IsInitial {
		t.Fatalf("expected initial record, got %#v", initial)
	}
	if doc.Dirty() || !doc.Exists() {
		t.Fatalf("expected clean persisted document")
	}

	noop, err := svc.Save(ctx, doc)
	if err != nil {
		t.Fatalf("Save (clean) failed: %v", err)
	}
	if noop != nil {
		t.Fatalf("expected no record for clean document, got %#v", noop)
	}

	doc.Set("title", "Hi")
	rec, err := svc.Save(ctx, doc)
	if err != nil {
		t.Fatalf("Save (update) failed: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected update record")
	}
	if diff := cmp.Diff(map[string]any{"title": "Hi"}, rec.Contents.Map()); diff != "" {
		t.Fatalf("unexpected update contents (-want +got):\n%s", diff)
	}

	loaded, err := svc.Find(ctx, "post", "1", false)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got := loaded.Fields().Value("title"); got != "Hi" {
		t.Fatalf("expected persisted title Hi, got %v", got)
	}

	if got := listIDs(t, h, doc.Ref(), history.ListOptions{}); len(got) != 2 {
		t.Fatalf("expected 2 records, got %v", got)
	}
}

func TestDocumentServiceFindMissing(t *testing.T) {
	svc, _ := setupService(t, version.DefaultPolicy(), 0)

	_, err := svc.Find(context.Background(), "post", "404", true)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentServiceSaveRollsBackOnVersioningError(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t, version.DefaultPolicy(), 0)

	doc, err := document.New("comment", "1")
	if err != nil {
		t.Fatalf("document.New failed: %v", err)
	}
	doc.Set("text", "unregistered type")

	var cfgErr *version.InvalidConfigurationError
	if _, err := svc.Save(ctx, doc); !errors.As(err, &cfgErr) {
		t.Fatalf("expected InvalidConfigurationError, got %v", err)
	}

	if _, err := svc.Find(ctx, "comment", "1", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected document insert to roll back, got %v", err)
	}
}

func TestDocumentServiceRetention(t *testing.T) {
	ctx := context.Background()
	svc, h := setupService(t, version.DefaultPolicy(), 2)

	doc := newPost(t, "1", "n", 0)
	if _, err := svc.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	for i := 1; i <= 4; i++ {
		doc.Set("n", i)
		if _, err := svc.Save(ctx, doc); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	if diff := cmp.Diff([]string{"1", "4", "5"}, listIDs(t, h, doc.Ref(), history.ListOptions{})); diff != "" {
		t.Fatalf("unexpected live ids (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2", "3"}, listIDs(t, h, doc.Ref(), history.ListOptions{OnlyTrashed: true})); diff != "" {
		t.Fatalf("unexpected trashed ids (-want +got):\n%s", diff)
	}
}

func TestDocumentServiceSoftDelete(t *testing.T) {
	ctx := context.Background()
	svc, h := setupService(t, version.DefaultPolicy(), 0)

	doc := newPost(t, "1", "title", "Hello")
	if _, err := svc.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	doc.Set("title", "Bye")
	rec, err := svc.Delete(ctx, doc, false)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if rec == nil || rec.Contents.Value("title") != "Bye" {
		t.Fatalf("expected soft delete to record pending changes, got %#v", rec)
	}
	if rec.Contents.Value(document.DeletedAtField) != "2024-06-01T08:00:03Z" {
		t.Fatalf("expected the deletion mark in the record, got %v", rec.Contents.Map())
	}

	if _, err := svc.Find(ctx, "post", "1", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected trashed document to be hidden, got %v", err)
	}
	trashed, err := svc.Find(ctx, "post", "1", true)
	if err != nil {
		t.Fatalf("Find withTrashed failed: %v", err)
	}
	if !trashed.Trashed() {
		t.Fatalf("expected document to be trashed")
	}

	restored, err := svc.Restore(ctx, trashed)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored == nil || !restored.Contents.Has(document.DeletedAtField) || restored.Contents.Value(document.DeletedAtField) != nil {
		t.Fatalf("expected restore to record a cleared deletion mark, got %#v", restored)
	}
	if _, err := svc.Find(ctx, "post", "1", false); err != nil {
		t.Fatalf("expected restored document, got %v", err)
	}

	if diff := cmp.Diff([]string{"1", "2", "3"}, listIDs(t, h, doc.Ref(), history.ListOptions{})); diff != "" {
		t.Fatalf("unexpected history (-want +got):\n%s", diff)
	}

	again, err := svc.Restore(ctx, trashed)
	if err != nil || again != nil {
		t.Fatalf("expected restoring a live document to be a no-op, got %#v (%v)", again, err)
	}
}

func TestDocumentServiceCleanSoftDeleteRecordsVersion(t *testing.T) {
	ctx := context.Background()
	svc, h := setupService(t, version.DefaultPolicy(), 0)

	doc := newPost(t, "1", "title", "Hello")
	if _, err := svc.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rec, err := svc.Delete(ctx, doc, false)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected a soft delete without edits to record a version")
	}
	if diff := cmp.Diff([]string{document.DeletedAtField}, rec.Contents.Keys()); diff != "" {
		t.Fatalf("unexpected record contents (-want +got):\n%s", diff)
	}
	if doc.Dirty() {
		t.Fatalf("expected the document to be clean after the delete")
	}

	if diff := cmp.Diff([]string{"1", "2"}, listIDs(t, h, doc.Ref(), history.ListOptions{})); diff != "" {
		t.Fatalf("unexpected history (-want +got):\n%s", diff)
	}
}

func TestDocumentServiceForceDeletePurgesHistory(t *testing.T) {
	ctx := context.Background()
	svc, h := setupService(t, version.DefaultPolicy(), 0)

	doc := newPost(t, "1", "title", "Hello")
	if _, err := svc.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	doc.Set("title", "Hi")
	if _, err := svc.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := svc.Delete(ctx, doc, true); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := svc.Find(ctx, "post", "1", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected document to be removed, got %v", err)
	}
	if got := listIDs(t, h, doc.Ref(), history.ListOptions{WithTrashed: true}); len(got) != 0 {
		t.Fatalf("expected history to be purged, got %v", got)
	}
}

func TestDocumentServiceDeleteUnsaved(t *testing.T) {
	svc, _ := setupService(t, version.DefaultPolicy(), 0)

	doc := newPost(t, "1", "title", "Hello")
	if _, err := svc.Delete(context.Background(), doc, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentServiceRevert(t *testing.T) {
	ctx := context.Background()
	svc, h := setupService(t, version.DefaultPolicy(), 0)

	doc := newPost(t, "1", "title", "v1", "body", "b1")
	if _, err := svc.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	doc.Fill(version.Pairs("title", "v2", "body", "b2"))
	v2, err := svc.Save(ctx, doc)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	doc.Set("title", "v3")
	if _, err := svc.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rec, state, err := svc.Revert(ctx, doc, v2.ID)
	if err != nil {
		t.Fatalf("Revert failed: %v", err)
	}
	if got := state.Value("title"); got != "v2" {
		t.Fatalf("expected staged title v2, got %v", got)
	}
	if rec == nil || rec.Contents.Value("title") != "v2" {
		t.Fatalf("expected revert to be recorded, got %#v", rec)
	}

	loaded, err := svc.Find(ctx, "post", "1", false)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"title": "v2", "body": "b2"}, loaded.Fields().Map()); diff != "" {
		t.Fatalf("unexpected reverted fields (-want +got):\n%s", diff)
	}
	if got := listIDs(t, h, doc.Ref(), history.ListOptions{}); len(got) != 4 {
		t.Fatalf("expected later versions to be kept, got %v", got)
	}
}

func TestDocumentServiceRevertOtherEntity(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t, version.DefaultPolicy(), 0)

	a := newPost(t, "a", "title", "A")
	b := newPost(t, "b", "title", "B")
	recA, err := svc.Save(ctx, a)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := svc.Save(ctx, b); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var mismatch *version.MismatchedEntityError
	if _, _, err := svc.Revert(ctx, b, recA.ID); !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchedEntityError, got %v", err)
	}
}

func TestDocumentServiceCreateVersion(t *testing.T) {
	ctx := context.Background()
	svc, h := setupService(t, version.DefaultPolicy(), 0)

	doc := newPost(t, "1", "title", "Hello")
	initial, err := svc.Save(ctx, doc)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	doc.Set("title", "World")
	if _, err := svc.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	at := initial.CreatedAt.Add(time.Second)
	rec, err := svc.CreateVersion(ctx, doc, version.Pairs("note", "imported"), at)
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}
	if rec == nil || !rec.CreatedAt.Equal(at) {
		t.Fatalf("expected back-dated record, got %#v", rec)
	}

	found, err := h.At(ctx, doc.Ref(), at)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if found == nil || found.ID != rec.ID {
		t.Fatalf("expected back-dated record at %v, got %#v", at, found)
	}
	if diff := cmp.Diff([]string{"1", rec.ID, "2"}, listIDs(t, h, doc.Ref(), history.ListOptions{})); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}

	_, err = svc.CreateVersion(ctx, doc, version.Pairs("note", "too early"), time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	var precedes *version.PrecedesInitialError
	if !errors.As(err, &precedes) {
		t.Fatalf("expected PrecedesInitialError, got %v", err)
	}
}

func TestDocumentServiceList(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t, version.DefaultPolicy(), 0)

	for _, id := range []string{"b", "a"} {
		if _, err := svc.Save(ctx, newPost(t, id, "title", id)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	docs, err := svc.List(ctx, "post", false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids); diff != "" {
		t.Fatalf("unexpected documents (-want +got):\n%s", diff)
	}
}
