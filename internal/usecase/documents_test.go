package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vault-md/versionable/internal/config"
	"github.com/vault-md/versionable/internal/database"
	"github.com/vault-md/versionable/internal/document"
	"github.com/vault-md/versionable/internal/metrics"
	"github.com/vault-md/versionable/internal/services"
	"github.com/vault-md/versionable/internal/version"
)

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

var start = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func setupDocuments(t *testing.T, settings config.Settings) *Documents {
	t.Helper()
	dbCtx, err := database.CreateDatabase(filepath.Join(t.TempDir(), "versions.db"))
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	t.Cleanup(func() {
		if err := database.CloseDatabase(dbCtx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})

	clk := &testClock{t: start}
	docs, err := NewDocuments(dbCtx, settings,
		WithClock(clk.now),
		WithMetrics(metrics.NewMetricsWith(prometheus.NewRegistry())),
	)
	if err != nil {
		t.Fatalf("NewDocuments failed: %v", err)
	}
	return docs
}

func set(t *testing.T, u *Documents, id string, kv ...any) *SetResult {
	t.Helper()
	res, err := u.Set(context.Background(), SetInput{Type: "post", ID: id, Fields: version.Pairs(kv...)})
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	return res
}

func recordIDs(records []version.Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestDocumentsSetAndHistory(t *testing.T) {
	ctx := context.Background()
	u := setupDocuments(t, config.DefaultSettings())

	first := set(t, u, "1", "title", "v1")
	if first.Version == nil || !first.Version.IsInitial {
		t.Fatalf("expected initial version, got %#v", first.Version)
	}
	set(t, u, "1", "title", "v2")
	set(t, u, "1", "title", "v3")
	if res := set(t, u, "1", "title", "v3"); res.Version != nil {
		t.Fatalf("expected no version for unchanged fields, got %#v", res.Version)
	}

	page, err := u.History(ctx, HistoryInput{Type: "post", ID: "1"})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if diff := cmp.Diff([]string{"3", "2", "1"}, recordIDs(page.Records)); diff != "" {
		t.Fatalf("unexpected newest-first ids (-want +got):\n%s", diff)
	}
	if page.Total != 3 {
		t.Fatalf("expected total 3, got %d", page.Total)
	}

	page, err = u.History(ctx, HistoryInput{Type: "post", ID: "1", Oldest: true, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if diff := cmp.Diff([]string{"2"}, recordIDs(page.Records)); diff != "" {
		t.Fatalf("unexpected page (-want +got):\n%s", diff)
	}
	if page.Total != 3 {
		t.Fatalf("expected total to ignore pagination, got %d", page.Total)
	}

	prev, next, err := u.Neighbors(ctx, "2")
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if prev == nil || prev.ID != "1" || next == nil || next.ID != "3" {
		t.Fatalf("unexpected neighbors: %#v %#v", prev, next)
	}
}

func TestDocumentsResolveAndStateAt(t *testing.T) {
	ctx := context.Background()
	u := setupDocuments(t, config.DefaultSettings())

	set(t, u, "1", "title", "v1", "body", "b1")
	set(t, u, "1", "title", "v2")
	set(t, u, "1", "body", "b3")

	state, rec, err := u.Resolve(ctx, "2")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rec.ID != "2" {
		t.Fatalf("expected record 2, got %s", rec.ID)
	}
	if diff := cmp.Diff(map[string]any{"title": "v2", "body": "b1"}, state.Map()); diff != "" {
		t.Fatalf("unexpected resolved state (-want +got):\n%s", diff)
	}

	// each save ticks the clock twice: records land at +2m, +4m and +6m
	state, rec, err = u.StateAt(ctx, "post", "1", start.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("StateAt failed: %v", err)
	}
	if rec == nil || rec.ID != "2" {
		t.Fatalf("expected version 2 in effect, got %#v", rec)
	}
	if got := state.Value("body"); got != "b1" {
		t.Fatalf("expected body b1, got %v", got)
	}

	_, rec, err = u.StateAt(ctx, "post", "1", start)
	if err != nil {
		t.Fatalf("StateAt failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected no version before history, got %#v", rec)
	}
}

func TestDocumentsDiff(t *testing.T) {
	ctx := context.Background()
	u := setupDocuments(t, config.DefaultSettings())

	set(t, u, "1", "title", "v1", "body", "line1\nline2")
	set(t, u, "1", "title", "v2", "body", "line1\nline3")

	result, err := u.Diff(ctx, "1", "2", "pair")
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(result.Fields) != 2 || result.Fields[0].Field != "title" {
		t.Fatalf("unexpected rendered fields: %#v", result.Fields)
	}

	stats, err := u.Statistics(ctx, "1", "2")
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Inserted != 2 || stats.Deleted != 2 || stats.Unmodified != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	if _, err := u.Diff(ctx, "1", "2", "bogus"); err == nil {
		t.Fatalf("expected unknown format error")
	}

	latest, err := u.Diff(ctx, "2", "", "pair")
	if err != nil {
		t.Fatalf("Diff with current failed: %v", err)
	}
	if latest.From != nil || latest.To == nil || latest.To.ID != "2" {
		t.Fatalf("expected comparison against live document, got %#v", latest)
	}
}

func TestDocumentsDiffOtherEntity(t *testing.T) {
	u := setupDocuments(t, config.DefaultSettings())
	set(t, u, "a", "title", "A")
	set(t, u, "b", "title", "B")

	var mismatch *version.MismatchedEntityError
	if _, err := u.Diff(context.Background(), "1", "2", "pair"); !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchedEntityError, got %v", err)
	}
}

func TestDocumentsRevertScenario(t *testing.T) {
	ctx := context.Background()
	u := setupDocuments(t, config.DefaultSettings())

	set(t, u, "1", "title", "v1", "content", "c1")
	set(t, u, "1", "title", "v2")
	set(t, u, "1", "title", "v3", "content", "c3")
	set(t, u, "1", "title", "v4")

	res, err := u.Revert(ctx, "2", "alice")
	if err != nil {
		t.Fatalf("Revert failed: %v", err)
	}
	if res.Version == nil {
		t.Fatalf("expected revert to record a version")
	}
	if res.Version.UserID == nil || *res.Version.UserID != "alice" {
		t.Fatalf("expected attribution to alice, got %v", res.Version.UserID)
	}

	doc, err := u.Get(ctx, "post", "1", false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := doc.Fields().Value("title"); got != "v2" {
		t.Fatalf("expected title v2 after revert, got %v", got)
	}

	page, err := u.History(ctx, HistoryInput{Type: "post", ID: "1"})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(page.Records) != 5 {
		t.Fatalf("expected 5 versions after revert, got %d", len(page.Records))
	}
}

func TestDocumentsTrimAndVersionDeletion(t *testing.T) {
	ctx := context.Background()
	u := setupDocuments(t, config.DefaultSettings())

	for i := 0; i < 5; i++ {
		set(t, u, "1", "n", i)
	}

	n, err := u.Trim(ctx, "post", "1", 2)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 trimmed, got %d", n)
	}

	page, err := u.History(ctx, HistoryInput{Type: "post", ID: "1", OnlyTrashed: true})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected 2 trashed, got %d", page.Total)
	}

	var protected *version.ProtectedRecordError
	if _, err := u.DeleteVersions(ctx, []string{"5", "1"}, false); !errors.As(err, &protected) {
		t.Fatalf("expected ProtectedRecordError, got %v", err)
	}
	if _, err := u.Version(ctx, "5"); err != nil {
		t.Fatalf("expected refused delete to leave version 5, got %v", err)
	}

	restored, err := u.RestoreVersions(ctx, []string{"2", "3"})
	if err != nil {
		t.Fatalf("RestoreVersions failed: %v", err)
	}
	if restored != 2 {
		t.Fatalf("expected 2 restored, got %d", restored)
	}

	deleted, err := u.DeleteVersions(ctx, []string{"2"}, true)
	if err != nil {
		t.Fatalf("DeleteVersions failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	if _, err := u.Version(ctx, "2"); !errors.Is(err, version.ErrNotFound) {
		t.Fatalf("expected version 2 to be gone, got %v", err)
	}
}

func TestDocumentsPerTypeSettings(t *testing.T) {
	ctx := context.Background()
	settings := config.DefaultSettings()
	settings.Types["post"] = config.TypeSettings{Strategy: "snapshot", Exclude: []string{"views"}, KeepVersions: 1}
	u := setupDocuments(t, settings)

	set(t, u, "1", "title", "v1", "views", 1)
	if res := set(t, u, "1", "views", 2); res.Version != nil {
		t.Fatalf("expected excluded field to be ignored, got %#v", res.Version)
	}
	res := set(t, u, "1", "title", "v2")
	if diff := cmp.Diff(map[string]any{"title": "v2"}, res.Version.Contents.Map()); diff != "" {
		t.Fatalf("unexpected snapshot contents (-want +got):\n%s", diff)
	}
	set(t, u, "1", "title", "v3")

	page, err := u.History(ctx, HistoryInput{Type: "post", ID: "1", Oldest: true})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if diff := cmp.Diff([]string{"1", "3"}, recordIDs(page.Records)); diff != "" {
		t.Fatalf("unexpected retained ids (-want +got):\n%s", diff)
	}
}

func TestDocumentsResolveAfterSoftRetention(t *testing.T) {
	ctx := context.Background()
	settings := config.DefaultSettings()
	settings.KeepVersions = 1
	u := setupDocuments(t, settings)

	set(t, u, "1", "title", "v1", "content", "c1")
	set(t, u, "1", "title", "v2")
	set(t, u, "1", "content", "c3")

	page, err := u.History(ctx, HistoryInput{Type: "post", ID: "1", Oldest: true})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if diff := cmp.Diff([]string{"1", "3"}, recordIDs(page.Records)); diff != "" {
		t.Fatalf("unexpected retained ids (-want +got):\n%s", diff)
	}

	state, _, err := u.Resolve(ctx, "2")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := map[string]any{"title": "v2", "content": "c1"}
	got := map[string]any{"title": state.Map()["title"], "content": state.Map()["content"]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected state of trimmed version (-want +got):\n%s", diff)
	}
}

func TestDocumentsDeleteAndCreateVersion(t *testing.T) {
	ctx := context.Background()
	u := setupDocuments(t, config.DefaultSettings())

	set(t, u, "1", "title", "v1")
	set(t, u, "1", "title", "v2")

	// between the initial record (start+2m) and v2 (start+4m)
	at := start.Add(3 * time.Minute)
	rec, err := u.CreateVersion(ctx, CreateVersionInput{Type: "post", ID: "1", Overrides: version.Pairs("note", "import"), At: at, UserID: "bob"})
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}
	if rec == nil || !rec.CreatedAt.Equal(at) {
		t.Fatalf("expected back-dated version, got %#v", rec)
	}
	if _, err := u.CreateVersion(ctx, CreateVersionInput{Type: "post", ID: "1", Overrides: version.Pairs("note", "early"), At: start}); err == nil {
		t.Fatalf("expected a version dated before the initial record to be refused")
	}

	trashed, err := u.Delete(ctx, "post", "1", false, "alice")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if trashed == nil || !trashed.Contents.Has(document.DeletedAtField) {
		t.Fatalf("expected the soft delete to be recorded, got %#v", trashed)
	}
	if _, err := u.Get(ctx, "post", "1", false); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected trashed document to be hidden, got %v", err)
	}
	restored, err := u.Restore(ctx, "post", "1", "alice")
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored == nil || restored.UserID == nil || *restored.UserID != "alice" {
		t.Fatalf("expected an attributed restore record, got %#v", restored)
	}
	if _, err := u.Set(ctx, SetInput{Type: "post", ID: "1", Fields: version.Pairs(document.DeletedAtField, "x")}); err == nil {
		t.Fatalf("expected the deletion mark to be refused as a field")
	}

	if _, err := u.Delete(ctx, "post", "1", true, ""); err != nil {
		t.Fatalf("Delete force failed: %v", err)
	}
	page, err := u.History(ctx, HistoryInput{Type: "post", ID: "1", WithTrashed: true})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected history to be purged, got %d", page.Total)
	}
}
