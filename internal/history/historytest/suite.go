// Package historytest holds a conformance suite every history.Store
// implementation runs in its own tests.
package historytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vault-md/versionable/internal/history"
	"github.com/vault-md/versionable/internal/version"
)

// NewStoreFunc returns an empty store for a single subtest.
type NewStoreFunc func(t *testing.T) history.Store

var (
	base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	post = version.EntityRef{Type: "post", ID: "1"}
	page = version.EntityRef{Type: "page", ID: "1"}
)

// RunStoreTests exercises ordering, navigation, deletion and atomicity.
func RunStoreTests(t *testing.T, newStore NewStoreFunc) {
	t.Helper()

	t.Run("AppendAssignsIncreasingSeq", func(t *testing.T) { testAppendAssignsSeq(t, newStore(t)) })
	t.Run("SameTimestampOrderedByInsertion", func(t *testing.T) { testSameTimestamp(t, newStore(t)) })
	t.Run("BackdatedAppendKeepsExistingOrder", func(t *testing.T) { testBackdated(t, newStore(t)) })
	t.Run("PreviousNextSkipTrashed", func(t *testing.T) { testNavigation(t, newStore(t)) })
	t.Run("AtSaturates", func(t *testing.T) { testAt(t, newStore(t)) })
	t.Run("ListVisibilityAndPagination", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("FindByID", func(t *testing.T) { testFindByID(t, newStore(t)) })
	t.Run("DeleteRestorePurge", func(t *testing.T) { testDeletion(t, newStore(t)) })
	t.Run("AtomicRollsBack", func(t *testing.T) { testAtomic(t, newStore(t)) })
	t.Run("ContentsRoundTrip", func(t *testing.T) { testContentsRoundTrip(t, newStore(t)) })
}

func appendAt(t *testing.T, s history.Store, ref version.EntityRef, at time.Time, kv ...any) version.Record {
	t.Helper()
	rec := version.Record{
		Entity:    ref,
		Contents:  version.Pairs(kv...),
		CreatedAt: at,
	}
	if err := s.Append(context.Background(), &rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	return rec
}

func ids(records []version.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func testAppendAssignsSeq(t *testing.T, s history.Store) {
	a := appendAt(t, s, post, base, "title", "a")
	b := appendAt(t, s, page, base, "title", "b")
	c := appendAt(t, s, post, base.Add(time.Second), "title", "c")

	if a.ID == "" || b.ID == "" || c.ID == "" {
		t.Fatalf("expected ids to be assigned: %q %q %q", a.ID, b.ID, c.ID)
	}
	if !(a.Seq < b.Seq && b.Seq < c.Seq) {
		t.Fatalf("expected strictly increasing seq, got %d %d %d", a.Seq, b.Seq, c.Seq)
	}
	if !a.UpdatedAt.Equal(a.CreatedAt) {
		t.Fatalf("expected updated_at to default to created_at")
	}
}

func testSameTimestamp(t *testing.T, s history.Store) {
	ctx := context.Background()
	first := appendAt(t, s, post, base, "n", 1)
	second := appendAt(t, s, post, base, "n", 2)
	third := appendAt(t, s, post, base, "n", 3)

	records, err := s.List(ctx, post, history.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if diff := cmp.Diff([]string{first.ID, second.ID, third.ID}, ids(records)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}

	prev, err := s.Previous(ctx, third)
	if err != nil {
		t.Fatalf("Previous failed: %v", err)
	}
	if prev == nil || prev.ID != second.ID {
		t.Fatalf("expected previous of third to be second, got %+v", prev)
	}

	next, err := s.Next(ctx, first)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected next of first to be second, got %+v", next)
	}

	latest, err := s.At(ctx, post, base)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if latest == nil || latest.ID != third.ID {
		t.Fatalf("expected At to return the last record sharing the timestamp, got %+v", latest)
	}
}

func testBackdated(t *testing.T, s history.Store) {
	ctx := context.Background()
	a := appendAt(t, s, post, base, "v", 1)
	b := appendAt(t, s, post, base.Add(2*time.Hour), "v", 2)
	old := appendAt(t, s, post, base.Add(time.Hour), "v", "backdated")

	records, err := s.List(ctx, post, history.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if diff := cmp.Diff([]string{a.ID, old.ID, b.ID}, ids(records)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}

	got, err := s.FindByID(ctx, b.ID, false)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Seq != b.Seq {
		t.Fatalf("existing record changed seq: %d -> %d", b.Seq, got.Seq)
	}
}

func testNavigation(t *testing.T, s history.Store) {
	ctx := context.Background()
	v1 := appendAt(t, s, post, base, "v", 1)
	v2 := appendAt(t, s, post, base.Add(time.Minute), "v", 2)
	v3 := appendAt(t, s, post, base.Add(2*time.Minute), "v", 3)
	appendAt(t, s, page, base.Add(90*time.Second), "v", "other")

	if _, err := s.SoftDelete(ctx, base.Add(time.Hour), v2.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	prev, err := s.Previous(ctx, v3)
	if err != nil {
		t.Fatalf("Previous failed: %v", err)
	}
	if prev == nil || prev.ID != v1.ID {
		t.Fatalf("expected previous to skip trashed v2, got %+v", prev)
	}

	next, err := s.Next(ctx, v1)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if next == nil || next.ID != v3.ID {
		t.Fatalf("expected next to skip trashed v2, got %+v", next)
	}

	none, err := s.Previous(ctx, v1)
	if err != nil || none != nil {
		t.Fatalf("expected no previous for first record, got %+v (%v)", none, err)
	}
	none, err = s.Next(ctx, v3)
	if err != nil || none != nil {
		t.Fatalf("expected no next for last record, got %+v (%v)", none, err)
	}
}

func testAt(t *testing.T, s history.Store) {
	ctx := context.Background()
	v1 := appendAt(t, s, post, base, "v", 1)
	v2 := appendAt(t, s, post, base.Add(24*time.Hour), "v", 2)

	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{name: "before first", at: base.Add(-time.Second), want: ""},
		{name: "exactly first", at: base, want: v1.ID},
		{name: "between", at: base.Add(time.Hour), want: v1.ID},
		{name: "exactly second", at: base.Add(24 * time.Hour), want: v2.ID},
		{name: "future", at: base.Add(365 * 24 * time.Hour), want: v2.ID},
	}
	for _, tc := range cases {
		got, err := s.At(ctx, post, tc.at)
		if err != nil {
			t.Fatalf("%s: At failed: %v", tc.name, err)
		}
		gotID := ""
		if got != nil {
			gotID = got.ID
		}
		if gotID != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, gotID)
		}
	}
}

func testList(t *testing.T, s history.Store) {
	ctx := context.Background()
	var all []string
	for i := 0; i < 5; i++ {
		rec := appendAt(t, s, post, base.Add(time.Duration(i)*time.Minute), "v", i)
		all = append(all, rec.ID)
	}
	if _, err := s.SoftDelete(ctx, base.Add(time.Hour), all[1]); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	live, err := s.List(ctx, post, history.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if diff := cmp.Diff([]string{all[0], all[2], all[3], all[4]}, ids(live)); diff != "" {
		t.Fatalf("live list (-want +got):\n%s", diff)
	}

	newest, err := s.List(ctx, post, history.ListOptions{Newest: true, WithTrashed: true, Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if diff := cmp.Diff([]string{all[3], all[2]}, ids(newest)); diff != "" {
		t.Fatalf("paginated list (-want +got):\n%s", diff)
	}

	trashed, err := s.List(ctx, post, history.ListOptions{OnlyTrashed: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if diff := cmp.Diff([]string{all[1]}, ids(trashed)); diff != "" {
		t.Fatalf("trashed list (-want +got):\n%s", diff)
	}

	count, err := s.Count(ctx, post, false)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 live records, got %d", count)
	}

	past, err := s.List(ctx, post, history.ListOptions{Offset: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(past))
	}
}

func testFindByID(t *testing.T, s history.Store) {
	ctx := context.Background()
	rec := appendAt(t, s, post, base, "title", "x")

	if _, err := s.FindByID(ctx, "missing", true); !errors.Is(err, version.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.SoftDelete(ctx, base.Add(time.Minute), rec.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if _, err := s.FindByID(ctx, rec.ID, false); !errors.Is(err, version.ErrNotFound) {
		t.Fatalf("expected trashed record to be hidden, got %v", err)
	}
	got, err := s.FindByID(ctx, rec.ID, true)
	if err != nil {
		t.Fatalf("FindByID withTrashed failed: %v", err)
	}
	if !got.Trashed() || !got.DeletedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected deleted_at to be recorded, got %v", got.DeletedAt)
	}
}

func testDeletion(t *testing.T, s history.Store) {
	ctx := context.Background()
	a := appendAt(t, s, post, base, "v", 1)
	b := appendAt(t, s, post, base.Add(time.Minute), "v", 2)
	c := appendAt(t, s, post, base.Add(2*time.Minute), "v", 3)
	other := appendAt(t, s, page, base, "v", 1)

	n, err := s.SoftDelete(ctx, base.Add(time.Hour), b.ID, c.ID)
	if err != nil || n != 2 {
		t.Fatalf("SoftDelete expected 2, got %d (%v)", n, err)
	}
	n, err = s.SoftDelete(ctx, base.Add(time.Hour), b.ID)
	if err != nil || n != 0 {
		t.Fatalf("second SoftDelete expected 0, got %d (%v)", n, err)
	}

	n, err = s.Restore(ctx, b.ID)
	if err != nil || n != 1 {
		t.Fatalf("Restore expected 1, got %d (%v)", n, err)
	}

	n, err = s.ForceDelete(ctx, c.ID)
	if err != nil || n != 1 {
		t.Fatalf("ForceDelete expected 1, got %d (%v)", n, err)
	}
	if _, err := s.FindByID(ctx, c.ID, true); !errors.Is(err, version.ErrNotFound) {
		t.Fatalf("expected force-deleted record to be gone, got %v", err)
	}

	n, err = s.Purge(ctx, post)
	if err != nil || n != 2 {
		t.Fatalf("Purge expected 2, got %d (%v)", n, err)
	}
	if _, err := s.FindByID(ctx, a.ID, true); !errors.Is(err, version.ErrNotFound) {
		t.Fatalf("expected purged record to be gone, got %v", err)
	}
	if _, err := s.FindByID(ctx, other.ID, false); err != nil {
		t.Fatalf("purge must not touch other entities: %v", err)
	}
}

func testAtomic(t *testing.T, s history.Store) {
	ctx := context.Background()
	kept := appendAt(t, s, post, base, "v", 1)

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx history.Store) error {
		rec := version.Record{Entity: post, Contents: version.Pairs("v", 2), CreatedAt: base.Add(time.Minute)}
		if err := tx.Append(ctx, &rec); err != nil {
			return err
		}
		if _, err := tx.SoftDelete(ctx, base.Add(time.Hour), kept.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	records, err := s.List(ctx, post, history.ListOptions{WithTrashed: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != kept.ID || records[0].Trashed() {
		t.Fatalf("expected rollback to leave only the original live record, got %+v", records)
	}

	err = s.Atomic(ctx, func(tx history.Store) error {
		rec := version.Record{Entity: post, Contents: version.Pairs("v", 3), CreatedAt: base.Add(time.Minute)}
		return tx.Append(ctx, &rec)
	})
	if err != nil {
		t.Fatalf("Atomic commit failed: %v", err)
	}
	count, err := s.Count(ctx, post, false)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 records after commit, got %d (%v)", count, err)
	}
}

func testContentsRoundTrip(t *testing.T, s history.Store) {
	ctx := context.Background()
	user := "user-7"
	rec := version.Record{
		Entity:    post,
		UserID:    &user,
		Contents:  version.Pairs("title", "T", "content", "C", "views", 3, "tags", []any{"a", "b"}),
		CreatedAt: base,
		IsInitial: true,
	}
	if err := s.Append(ctx, &rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	anon := version.Record{Entity: post, Contents: version.Pairs("title", "U"), CreatedAt: base.Add(time.Second)}
	if err := s.Append(ctx, &anon); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := s.FindByID(ctx, rec.ID, false)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if diff := cmp.Diff(rec.Contents.Keys(), got.Contents.Keys()); diff != "" {
		t.Fatalf("key order lost (-want +got):\n%s", diff)
	}
	if !got.Contents.Equal(rec.Contents) {
		t.Fatalf("contents changed: %v vs %v", got.Contents.Map(), rec.Contents.Map())
	}
	if got.UserID == nil || *got.UserID != user || !got.IsInitial {
		t.Fatalf("metadata lost: %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("created_at changed: %v", got.CreatedAt)
	}

	gotAnon, err := s.FindByID(ctx, anon.ID, false)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if gotAnon.UserID != nil || gotAnon.IsInitial {
		t.Fatalf("expected anonymous non-initial record, got %+v", gotAnon)
	}
}
