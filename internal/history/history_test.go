package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vault-md/versionable/internal/history"
	"github.com/vault-md/versionable/internal/history/historytest"
	"github.com/vault-md/versionable/internal/version"
)

var ref = version.EntityRef{Type: "post", ID: "1"}

func TestMemoryStoreConformance(t *testing.T) {
	historytest.RunStoreTests(t, func(t *testing.T) history.Store {
		return history.NewMemoryStore(nil)
	})
}

func TestMemoryStoreConformanceWithUUIDs(t *testing.T) {
	historytest.RunStoreTests(t, func(t *testing.T) history.Store {
		return history.NewMemoryStore(version.UUIDIDs{})
	})
}

func seed(t *testing.T, h *history.History, n int) []version.Record {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]version.Record, 0, n)
	for i := 0; i < n; i++ {
		rec := version.Record{
			Entity:    ref,
			Contents:  version.Pairs("n", i),
			CreatedAt: start.Add(time.Duration(i) * time.Minute),
			IsInitial: i == 0,
		}
		if err := h.Append(context.Background(), &rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func liveIDs(t *testing.T, h *history.History) []string {
	t.Helper()
	records, err := h.List(context.Background(), ref, history.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestTrimKeepsInitialAndNewest(t *testing.T) {
	h := history.New(history.NewMemoryStore(nil))
	records := seed(t, h, 6)

	removed, err := h.Trim(context.Background(), ref, 2, false)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 records trimmed, got %d", removed)
	}

	want := []string{records[0].ID, records[4].ID, records[5].ID}
	if diff := cmp.Diff(want, liveIDs(t, h)); diff != "" {
		t.Fatalf("unexpected survivors (-want +got):\n%s", diff)
	}

	trashed, err := h.List(context.Background(), ref, history.ListOptions{OnlyTrashed: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(trashed) != 3 {
		t.Fatalf("soft trim should leave 3 trashed records, got %d", len(trashed))
	}
}

func TestTrimKeepOneStillKeepsInitial(t *testing.T) {
	h := history.New(history.NewMemoryStore(nil))
	records := seed(t, h, 4)

	if _, err := h.Trim(context.Background(), ref, 1, true); err != nil {
		t.Fatalf("Trim failed: %v", err)
	}

	want := []string{records[0].ID, records[3].ID}
	if diff := cmp.Diff(want, liveIDs(t, h)); diff != "" {
		t.Fatalf("unexpected survivors (-want +got):\n%s", diff)
	}

	all, err := h.List(context.Background(), ref, history.ListOptions{WithTrashed: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("force trim should hard delete, got %d records", len(all))
	}
}

func TestTrimDisabled(t *testing.T) {
	h := history.New(history.NewMemoryStore(nil))
	seed(t, h, 3)

	for _, keep := range []int{0, -1} {
		removed, err := h.Trim(context.Background(), ref, keep, false)
		if err != nil || removed != 0 {
			t.Fatalf("keep=%d: expected no-op, got %d (%v)", keep, removed, err)
		}
	}
	if got := len(liveIDs(t, h)); got != 3 {
		t.Fatalf("expected 3 live records, got %d", got)
	}
}

func TestDeleteProtectsInitialRecord(t *testing.T) {
	h := history.New(history.NewMemoryStore(nil))
	records := seed(t, h, 3)
	ctx := context.Background()

	_, err := h.Delete(ctx, false, records[1].ID, records[0].ID)
	var protected *version.ProtectedRecordError
	if !errors.As(err, &protected) || protected.ID != records[0].ID {
		t.Fatalf("expected ProtectedRecordError, got %v", err)
	}
	if got := len(liveIDs(t, h)); got != 3 {
		t.Fatalf("refused delete must not remove anything, %d live", got)
	}

	n, err := h.Delete(ctx, false, records[1].ID)
	if err != nil || n != 1 {
		t.Fatalf("Delete expected 1, got %d (%v)", n, err)
	}

	n, err = h.DeleteUnprotected(ctx, true, records[0].ID)
	if err != nil || n != 1 {
		t.Fatalf("DeleteUnprotected expected 1, got %d (%v)", n, err)
	}

	if _, err := h.Delete(ctx, false, "nope"); !errors.Is(err, version.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestRestoreAndNavigation(t *testing.T) {
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	h := history.New(history.NewMemoryStore(nil), history.WithClock(func() time.Time { return fixed }))
	records := seed(t, h, 3)
	ctx := context.Background()

	if _, err := h.Delete(ctx, false, records[2].ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	trashed, err := h.GetWithTrashed(ctx, records[2].ID)
	if err != nil {
		t.Fatalf("GetWithTrashed failed: %v", err)
	}
	if !trashed.DeletedAt.Equal(fixed) {
		t.Fatalf("expected injected clock for deleted_at, got %v", trashed.DeletedAt)
	}

	latest, err := h.Latest(ctx, ref)
	if err != nil || latest == nil || latest.ID != records[1].ID {
		t.Fatalf("expected latest to be records[1], got %+v (%v)", latest, err)
	}

	if _, err := h.Restore(ctx, records[2].ID); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	latest, err = h.Latest(ctx, ref)
	if err != nil || latest == nil || latest.ID != records[2].ID {
		t.Fatalf("expected restored record to be latest, got %+v (%v)", latest, err)
	}

	first, err := h.First(ctx, ref)
	if err != nil || first == nil || first.ID != records[0].ID {
		t.Fatalf("expected initial record first, got %+v (%v)", first, err)
	}
}

func TestAppendDefaultsCreatedAtFromClock(t *testing.T) {
	fixed := time.Date(2031, 6, 1, 0, 0, 0, 0, time.UTC)
	h := history.New(history.NewMemoryStore(nil), history.WithClock(func() time.Time { return fixed }))

	rec := version.Record{Entity: ref, Contents: version.Pairs("a", 1)}
	if err := h.Append(context.Background(), &rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !rec.CreatedAt.Equal(fixed) {
		t.Fatalf("expected clock time, got %v", rec.CreatedAt)
	}

	if err := h.Append(context.Background(), &version.Record{}); err == nil {
		t.Fatalf("expected error for record without entity")
	}
}
