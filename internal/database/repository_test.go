package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vault-md/versionable/internal/document"
	"github.com/vault-md/versionable/internal/history"
	"github.com/vault-md/versionable/internal/history/historytest"
	"github.com/vault-md/versionable/internal/version"
)

func newFileDB(t *testing.T) *Context {
	t.Helper()
	ctx, err := CreateDatabase(filepath.Join(t.TempDir(), "versions.db"))
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	t.Cleanup(func() {
		if err := CloseDatabase(ctx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})
	return ctx
}

func TestVersionRepositoryConformance(t *testing.T) {
	historytest.RunStoreTests(t, func(t *testing.T) history.Store {
		return NewVersionRepository(newFileDB(t))
	})
}

func TestVersionRepositoryConformanceUUID(t *testing.T) {
	historytest.RunStoreTests(t, func(t *testing.T) history.Store {
		return NewVersionRepository(newFileDB(t), WithIDGenerator(version.UUIDIDs{}))
	})
}

func TestVersionRepositorySequentialIDsFollowSeq(t *testing.T) {
	ctx := context.Background()
	repo := NewVersionRepository(setupTestDB(t))
	ref := version.EntityRef{Type: "post", ID: "1"}

	var got []string
	for i := 0; i < 3; i++ {
		rec := version.Record{Entity: ref, Contents: version.Pairs("n", i), CreatedAt: time.Now()}
		if err := repo.Append(ctx, &rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		got = append(got, rec.ID)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, got); diff != "" {
		t.Fatalf("unexpected ids (-want +got):\n%s", diff)
	}
}

func TestVersionRepositoryStoresNanosecondTimestamps(t *testing.T) {
	ctx := context.Background()
	repo := NewVersionRepository(setupTestDB(t))
	ref := version.EntityRef{Type: "post", ID: "1"}

	local := time.FixedZone("UTC+9", 9*60*60)
	at := time.Date(2024, 2, 29, 23, 59, 59, 123456789, local)
	rec := version.Record{Entity: ref, Contents: version.Pairs("a", 1), CreatedAt: at}
	if err := repo.Append(ctx, &rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := repo.FindByID(ctx, rec.ID, false)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !got.CreatedAt.Equal(at) || got.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected %v stored as UTC, got %v", at, got.CreatedAt)
	}

	found, err := repo.At(ctx, ref, at)
	if err != nil || found == nil || found.ID != rec.ID {
		t.Fatalf("At with a non-UTC instant must find the record, got %+v (%v)", found, err)
	}
	before, err := repo.At(ctx, ref, at.Add(-time.Nanosecond))
	if err != nil || before != nil {
		t.Fatalf("At before the record must return nil, got %+v (%v)", before, err)
	}
}

func TestVersionRepositoryNestedAtomicJoinsTransaction(t *testing.T) {
	ctx := context.Background()
	repo := NewVersionRepository(setupTestDB(t))
	ref := version.EntityRef{Type: "post", ID: "1"}
	boom := errors.New("boom")

	err := repo.Atomic(ctx, func(tx history.Store) error {
		return tx.Atomic(ctx, func(inner history.Store) error {
			rec := version.Record{Entity: ref, Contents: version.Pairs("a", 1), CreatedAt: time.Now()}
			if err := inner.Append(ctx, &rec); err != nil {
				return err
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n, _ := repo.Count(ctx, ref, true); n != 0 {
		t.Fatalf("nested rollback must discard the append, got %d records", n)
	}
}

func TestDocumentRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t))
	now := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

	missing, err := repo.Find(ctx, "post", "1", false)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing document, got %+v (%v)", missing, err)
	}

	doc, err := document.New("post", "1")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	doc.Fill(version.Pairs("title", "Hello", "tags", []any{"a"}))
	doc.CreatedAt, doc.UpdatedAt = now, now
	if err := repo.Insert(ctx, doc); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := repo.Insert(ctx, doc); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	found, err := repo.Find(ctx, "post", "1", false)
	if err != nil || found == nil {
		t.Fatalf("Find failed: %+v (%v)", found, err)
	}
	if diff := cmp.Diff([]string{"title", "tags"}, found.Fields().Keys()); diff != "" {
		t.Fatalf("field order lost (-want +got):\n%s", diff)
	}
	if found.Dirty() || !found.Exists() || !found.CreatedAt.Equal(now) {
		t.Fatalf("unexpected loaded document: %+v", found)
	}

	found.Set("title", "World")
	deletedAt := now.Add(time.Hour)
	found.UpdatedAt, found.DeletedAt = deletedAt, &deletedAt
	if err := repo.Update(ctx, found); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if live, _ := repo.Find(ctx, "post", "1", false); live != nil {
		t.Fatalf("soft-deleted document must be hidden")
	}
	trashed, err := repo.Find(ctx, "post", "1", true)
	if err != nil || trashed == nil || !trashed.Trashed() || trashed.Fields().Value("title") != "World" {
		t.Fatalf("unexpected trashed document: %+v (%v)", trashed, err)
	}

	other, _ := document.New("page", "9")
	other.CreatedAt, other.UpdatedAt = now, now
	if err := repo.Insert(ctx, other); err != nil {
		t.Fatalf("Insert page failed: %v", err)
	}
	all, err := repo.List(ctx, "", true)
	if err != nil || len(all) != 2 || all[0].Type != "page" {
		t.Fatalf("unexpected list: %+v (%v)", all, err)
	}
	posts, err := repo.List(ctx, "post", false)
	if err != nil || len(posts) != 0 {
		t.Fatalf("expected no live posts, got %d (%v)", len(posts), err)
	}

	deleted, err := repo.Delete(ctx, "post", "1")
	if err != nil || !deleted {
		t.Fatalf("Delete failed: %v (%v)", deleted, err)
	}
	ghost, _ := document.New("post", "404")
	if err := repo.Update(ctx, ghost); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating a missing document, got %v", err)
	}
}
