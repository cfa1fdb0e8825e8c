package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vault-md/versionable/internal/config"
	"github.com/vault-md/versionable/internal/database"
	"github.com/vault-md/versionable/internal/diff"
	"github.com/vault-md/versionable/internal/document"
	"github.com/vault-md/versionable/internal/history"
	"github.com/vault-md/versionable/internal/logger"
	"github.com/vault-md/versionable/internal/metrics"
	"github.com/vault-md/versionable/internal/reconstruct"
	"github.com/vault-md/versionable/internal/services"
	"github.com/vault-md/versionable/internal/version"
	"github.com/vault-md/versionable/internal/versioning"
)

// FormatStats selects line statistics instead of a field formatter.
const FormatStats = "stats"

type Documents struct {
	settings      config.Settings
	registry      *version.Registry
	history       *history.History
	controller    *versioning.Controller
	service       *services.DocumentService
	reconstructor *reconstruct.Reconstructor
	log           *logger.Logger
	metrics       *metrics.Metrics
}

type options struct {
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures Documents.
type Option func(*options)

func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewDocuments wires the versioning engine over dbCtx according to
// settings.
func NewDocuments(dbCtx *database.Context, settings config.Settings, opts ...Option) (*Documents, error) {
	o := options{log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	registry, err := settings.Registry()
	if err != nil {
		return nil, err
	}
	ids, err := settings.IDGenerator()
	if err != nil {
		return nil, err
	}

	versions := database.NewVersionRepository(dbCtx,
		database.WithIDGenerator(ids),
		database.WithRepositoryLogger(o.log),
		database.WithRepositoryMetrics(o.metrics),
	)
	h := history.New(versions, history.WithClock(o.now))
	ctrl := versioning.New(registry, h,
		versioning.WithKeepVersions(settings.KeepVersions),
		versioning.WithClock(o.now),
		versioning.WithLogger(o.log),
		versioning.WithMetrics(o.metrics),
	)
	svc := services.NewDocumentService(dbCtx, versions, ctrl, services.WithClock(o.now))
	for _, t := range registry.Types() {
		registry.RegisterLoader(t, svc)
	}

	return &Documents{
		settings:      settings,
		registry:      registry,
		history:       h,
		controller:    ctrl,
		service:       svc,
		reconstructor: reconstruct.New(registry, h),
		log:           o.log.Component("usecase"),
		metrics:       o.metrics,
	}, nil
}

// Controller exposes the lifecycle controller, mainly for toggling
// versioning per type.
func (u *Documents) Controller() *versioning.Controller {
	return u.controller
}

func (u *Documents) UserForeignKey() string {
	return u.settings.UserForeignKey
}

type SetInput struct {
	Type   string
	ID     string
	Fields version.Contents
	UserID string
}

type SetResult struct {
	Document *document.Document
	// Version is nil when nothing was recorded.
	Version *version.Record
}

// Set creates the document or merges Fields into it and saves, recording a
// version when anything changed.
func (u *Documents) Set(ctx context.Context, input SetInput) (*SetResult, error) {
	doc, err := u.service.Find(ctx, input.Type, input.ID, true)
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			return nil, err
		}
		if doc, err = document.New(input.Type, input.ID); err != nil {
			return nil, err
		}
	}

	if input.Fields.Has(document.DeletedAtField) {
		return nil, fmt.Errorf("field %q is reserved for the soft-delete mark", document.DeletedAtField)
	}
	doc.Fill(input.Fields)
	doc.WithUser(input.UserID)
	rec, err := u.service.Save(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &SetResult{Document: doc, Version: rec}, nil
}

func (u *Documents) Get(ctx context.Context, docType, id string, withTrashed bool) (*document.Document, error) {
	return u.service.Find(ctx, docType, id, withTrashed)
}

func (u *Documents) List(ctx context.Context, docType string, withTrashed bool) ([]*document.Document, error) {
	return u.service.List(ctx, docType, withTrashed)
}

// Delete soft-deletes the document or, with force, removes it together
// with its history.
func (u *Documents) Delete(ctx context.Context, docType, id string, force bool, userID string) (*version.Record, error) {
	doc, err := u.service.Find(ctx, docType, id, true)
	if err != nil {
		return nil, err
	}
	if doc.Trashed() && !force {
		return nil, nil
	}
	doc.WithUser(userID)
	return u.service.Delete(ctx, doc, force)
}

// Restore clears the soft-delete mark of a document.
func (u *Documents) Restore(ctx context.Context, docType, id, userID string) (*version.Record, error) {
	doc, err := u.service.Find(ctx, docType, id, true)
	if err != nil {
		return nil, err
	}
	doc.WithUser(userID)
	return u.service.Restore(ctx, doc)
}

type HistoryInput struct {
	Type        string
	ID          string
	Oldest      bool
	WithTrashed bool
	OnlyTrashed bool
	Limit       int
	Offset      int
}

type HistoryPage struct {
	Records []version.Record
	// Total counts records matching the visibility filter, ignoring
	// pagination.
	Total int64
}

// History lists the version records of a document, newest first unless
// Oldest is set.
func (u *Documents) History(ctx context.Context, input HistoryInput) (*HistoryPage, error) {
	ref := version.EntityRef{Type: input.Type, ID: input.ID}
	records, err := u.history.List(ctx, ref, history.ListOptions{
		Newest:      !input.Oldest,
		WithTrashed: input.WithTrashed,
		OnlyTrashed: input.OnlyTrashed,
		Limit:       input.Limit,
		Offset:      input.Offset,
	})
	if err != nil {
		return nil, err
	}

	total, err := u.total(ctx, ref, input)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Records: records, Total: total}, nil
}

func (u *Documents) total(ctx context.Context, ref version.EntityRef, input HistoryInput) (int64, error) {
	if !input.OnlyTrashed {
		return u.history.Store().Count(ctx, ref, input.WithTrashed)
	}
	all, err := u.history.Store().Count(ctx, ref, true)
	if err != nil {
		return 0, err
	}
	live, err := u.history.Count(ctx, ref)
	if err != nil {
		return 0, err
	}
	return all - live, nil
}

// Version returns the record with id, including soft-deleted records.
func (u *Documents) Version(ctx context.Context, id string) (*version.Record, error) {
	return u.history.GetWithTrashed(ctx, id)
}

// Neighbors returns the live records immediately before and after id.
// Either side is nil at the ends of the history.
func (u *Documents) Neighbors(ctx context.Context, id string) (prev, next *version.Record, err error) {
	rec, err := u.Version(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if prev, err = u.history.Previous(ctx, *rec); err != nil {
		return nil, nil, err
	}
	if next, err = u.history.Next(ctx, *rec); err != nil {
		return nil, nil, err
	}
	return prev, next, nil
}

// VersionAt returns the record in effect at t, or nil when t precedes the
// history.
func (u *Documents) VersionAt(ctx context.Context, docType, id string, t time.Time) (*version.Record, error) {
	return u.history.At(ctx, version.EntityRef{Type: docType, ID: id}, t)
}

// Resolve returns the full state of the document as of version id.
func (u *Documents) Resolve(ctx context.Context, id string) (version.Contents, *version.Record, error) {
	rec, err := u.Version(ctx, id)
	if err != nil {
		return version.Contents{}, nil, err
	}
	entity, err := u.load(ctx, rec.Entity)
	if err != nil {
		return version.Contents{}, nil, err
	}

	policy, err := u.registry.Policy(rec.Entity.Type)
	if err != nil {
		return version.Contents{}, nil, err
	}
	start := time.Now()
	state, err := u.reconstructor.Resolve(ctx, entity, *rec)
	if err != nil {
		return version.Contents{}, nil, err
	}
	u.metrics.RecordReconstruction(string(policy.Strategy), time.Since(start))
	return state, rec, nil
}

// StateAt resolves the version in effect at t. It returns a nil record
// when t precedes the history.
func (u *Documents) StateAt(ctx context.Context, docType, id string, t time.Time) (version.Contents, *version.Record, error) {
	rec, err := u.VersionAt(ctx, docType, id, t)
	if err != nil || rec == nil {
		return version.Contents{}, nil, err
	}
	return u.Resolve(ctx, rec.ID)
}

type DiffResult struct {
	From   *version.Record
	To     *version.Record
	Format string
	Fields []diff.Rendered
	Stats  *diff.Stats
}

// Diff compares version a with version b. An empty b compares a with the
// version right after it, and with the live document when a is the latest.
func (u *Documents) Diff(ctx context.Context, a, b, format string) (*DiffResult, error) {
	from, err := u.Version(ctx, a)
	if err != nil {
		return nil, err
	}

	if b == "" {
		next, err := u.history.Next(ctx, *from)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return u.DiffWithCurrent(ctx, a, format)
		}
		b = next.ID
	}

	to, err := u.Version(ctx, b)
	if err != nil {
		return nil, err
	}
	result, err := diff.Diff(*from, *to)
	if err != nil {
		return nil, err
	}
	return u.render(result, from, to, format)
}

// DiffWithCurrent compares the live document, limited to the fields of
// version id, with that version's contents.
func (u *Documents) DiffWithCurrent(ctx context.Context, id, format string) (*DiffResult, error) {
	rec, err := u.Version(ctx, id)
	if err != nil {
		return nil, err
	}
	entity, err := u.load(ctx, rec.Entity)
	if err != nil {
		return nil, err
	}

	current := entity.RawState().Only(rec.Contents.Keys()...)
	return u.render(diff.Contents(current, rec.Contents), nil, rec, format)
}

// Statistics summarises the line changes between versions a and b.
func (u *Documents) Statistics(ctx context.Context, a, b string) (diff.Stats, error) {
	result, err := u.Diff(ctx, a, b, FormatStats)
	if err != nil {
		return diff.Stats{}, err
	}
	return *result.Stats, nil
}

func (u *Documents) render(result diff.Result, from, to *version.Record, format string) (*DiffResult, error) {
	u.metrics.RecordDiff()
	out := &DiffResult{From: from, To: to, Format: format}
	if format == FormatStats {
		stats := diff.Statistics(result)
		out.Stats = &stats
		return out, nil
	}

	f, err := diff.FormatterFor(format)
	if err != nil {
		return nil, err
	}
	out.Format = f.Name()
	if out.Fields, err = diff.Render(result, f); err != nil {
		return nil, err
	}
	return out, nil
}

// Revert restores the document to version id and saves it. The revert is
// recorded as a new version; later versions are kept.
func (u *Documents) Revert(ctx context.Context, id, userID string) (*SetResult, error) {
	rec, err := u.Version(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := u.service.Find(ctx, rec.Entity.Type, rec.Entity.ID, true)
	if err != nil {
		return nil, err
	}

	doc.WithUser(userID)
	saved, _, err := u.service.Revert(ctx, doc, id)
	if err != nil {
		return nil, err
	}
	u.log.Debug().Str("entity", rec.Entity.String()).Str("version", id).Msg("document reverted")
	return &SetResult{Document: doc, Version: saved}, nil
}

// Trim applies retention to a document's history. keep <= 0 uses the
// configured retention for the type.
func (u *Documents) Trim(ctx context.Context, docType, id string, keep int) (int64, error) {
	policy, err := u.registry.Policy(docType)
	if err != nil {
		return 0, err
	}
	if keep <= 0 {
		keep = policy.KeepVersions
		if keep == 0 {
			keep = u.settings.KeepVersions
		}
	}

	ref := version.EntityRef{Type: docType, ID: id}
	n, err := u.history.Trim(ctx, ref, keep, policy.ForceDeleteVersions)
	if err != nil {
		return 0, err
	}
	u.metrics.RecordTrimmed(docType, n)
	return n, nil
}

// DeleteVersions removes the listed records in one transaction. Initial
// records are refused with version.ProtectedRecordError.
func (u *Documents) DeleteVersions(ctx context.Context, ids []string, force bool) (int64, error) {
	var n int64
	err := u.history.Store().Atomic(ctx, func(tx history.Store) error {
		var err error
		n, err = u.history.WithStore(tx).Delete(ctx, force, ids...)
		return err
	})
	return n, err
}

func (u *Documents) RestoreVersions(ctx context.Context, ids []string) (int64, error) {
	return u.history.Restore(ctx, ids...)
}

type CreateVersionInput struct {
	Type      string
	ID        string
	Overrides version.Contents
	At        time.Time
	UserID    string
}

// CreateVersion records an explicit version of an existing document
// without saving it. It returns nil when there is nothing to record.
func (u *Documents) CreateVersion(ctx context.Context, input CreateVersionInput) (*version.Record, error) {
	doc, err := u.service.Find(ctx, input.Type, input.ID, true)
	if err != nil {
		return nil, err
	}
	doc.WithUser(input.UserID)
	return u.service.CreateVersion(ctx, doc, input.Overrides, input.At)
}

func (u *Documents) load(ctx context.Context, ref version.EntityRef) (version.Entity, error) {
	if u.registry.Registered(ref.Type) {
		return u.registry.Load(ctx, ref)
	}
	entity, err := u.service.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	return entity, nil
}
