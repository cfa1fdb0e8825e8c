package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqldb "github.com/vault-md/versionable/internal/database/sqlc"
	"github.com/vault-md/versionable/internal/history"
	"github.com/vault-md/versionable/internal/logger"
	"github.com/vault-md/versionable/internal/metrics"
	"github.com/vault-md/versionable/internal/version"
)

// VersionRepository stores version records in the versions table. It
// implements history.Store.
type VersionRepository struct {
	ctx     *Context
	ids     version.IDGenerator
	inTx    bool
	log     *logger.Logger
	metrics *metrics.Metrics
}

var _ history.Store = (*VersionRepository)(nil)

// VersionRepositoryOption configures a VersionRepository.
type VersionRepositoryOption func(*VersionRepository)

func WithIDGenerator(ids version.IDGenerator) VersionRepositoryOption {
	return func(r *VersionRepository) {
		if ids != nil {
			r.ids = ids
		}
	}
}

func WithRepositoryLogger(log *logger.Logger) VersionRepositoryOption {
	return func(r *VersionRepository) {
		if log != nil {
			r.log = log.Component("database")
		}
	}
}

func WithRepositoryMetrics(m *metrics.Metrics) VersionRepositoryOption {
	return func(r *VersionRepository) {
		r.metrics = m
	}
}

func NewVersionRepository(dbCtx *Context, opts ...VersionRepositoryOption) *VersionRepository {
	r := &VersionRepository{ctx: dbCtx, ids: version.SequentialIDs{}, log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithTx returns a repository whose statements run inside tx. Atomic on
// the returned repository joins tx instead of opening a new transaction.
func (r *VersionRepository) WithTx(tx *sql.Tx) *VersionRepository {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		queries = sqldb.New(tx)
	}
	var db *sql.DB
	if r.ctx != nil {
		db = r.ctx.DB
	}
	return &VersionRepository{
		ctx:     &Context{DB: db, Queries: queries.WithTx(tx)},
		ids:     r.ids,
		inTx:    true,
		log:     r.log,
		metrics: r.metrics,
	}
}

func (r *VersionRepository) Append(ctx context.Context, rec *version.Record) error {
	if !r.inTx {
		return r.Atomic(ctx, func(tx history.Store) error {
			return tx.Append(ctx, rec)
		})
	}

	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return fmt.Errorf("version repository: missing database context")
	}

	start := time.Now()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	params, err := VersionInsertParams(*rec)
	if err != nil {
		return err
	}

	seq, err := queries.InsertVersion(ctx, params)
	if err != nil {
		r.observe("append", start, 0, err)
		return err
	}

	id := rec.ID
	if id == "" {
		id = r.ids.NextID(seq)
	}
	if err := queries.SetVersionID(ctx, sqldb.SetVersionIDParams{ID: id, Seq: seq}); err != nil {
		r.observe("append", start, 0, err)
		return err
	}

	rec.Seq = seq
	rec.ID = id
	r.observe("append", start, 1, nil)
	return nil
}

func (r *VersionRepository) FindByID(ctx context.Context, id string, withTrashed bool) (*version.Record, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("version repository: missing database context")
	}

	row, err := queries.FindVersionByID(ctx, sqldb.FindVersionByIDParams{ID: id, WithTrashed: withTrashed})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &version.NotFoundError{ID: id}
		}
		return nil, err
	}

	record, err := VersionRecordFromRow(row)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *VersionRepository) List(ctx context.Context, ref version.EntityRef, opts history.ListOptions) ([]version.Record, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("version repository: missing database context")
	}

	visibility := sqldb.VisibilityLive
	switch {
	case opts.OnlyTrashed:
		visibility = sqldb.VisibilityTrashed
	case opts.WithTrashed:
		visibility = sqldb.VisibilityWith
	}
	limit := int64(-1)
	if opts.Limit > 0 {
		limit = int64(opts.Limit)
	}
	offset := int64(0)
	if opts.Offset > 0 {
		offset = int64(opts.Offset)
	}

	rows, err := queries.ListVersions(ctx, sqldb.ListVersionsParams{
		VersionableType: ref.Type,
		VersionableID:   ref.ID,
		Visibility:      visibility,
		Newest:          opts.Newest,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return nil, err
	}
	return versionRecordsFromRows(rows)
}

func (r *VersionRepository) Count(ctx context.Context, ref version.EntityRef, withTrashed bool) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("version repository: missing database context")
	}

	count, err := queries.CountVersions(ctx, sqldb.CountVersionsParams{
		VersionableType: ref.Type,
		VersionableID:   ref.ID,
		WithTrashed:     withTrashed,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (r *VersionRepository) Previous(ctx context.Context, rec version.Record) (*version.Record, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("version repository: missing database context")
	}

	row, err := queries.PreviousVersion(ctx, adjacentParams(rec))
	return optionalRecord(row, err)
}

func (r *VersionRepository) Next(ctx context.Context, rec version.Record) (*version.Record, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("version repository: missing database context")
	}

	row, err := queries.NextVersion(ctx, adjacentParams(rec))
	return optionalRecord(row, err)
}

func (r *VersionRepository) At(ctx context.Context, ref version.EntityRef, t time.Time) (*version.Record, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("version repository: missing database context")
	}

	row, err := queries.VersionAt(ctx, sqldb.VersionAtParams{
		VersionableType: ref.Type,
		VersionableID:   ref.ID,
		CreatedAt:       formatTime(t),
	})
	return optionalRecord(row, err)
}

func (r *VersionRepository) SoftDelete(ctx context.Context, at time.Time, ids ...string) (int64, error) {
	return r.eachID(ctx, "soft_delete", ids, func(queries *sqldb.Queries, id string) (int64, error) {
		return queries.SoftDeleteVersion(ctx, sqldb.SoftDeleteVersionParams{DeletedAt: formatTime(at), ID: id})
	})
}

func (r *VersionRepository) Restore(ctx context.Context, ids ...string) (int64, error) {
	return r.eachID(ctx, "restore", ids, func(queries *sqldb.Queries, id string) (int64, error) {
		return queries.RestoreVersion(ctx, id)
	})
}

func (r *VersionRepository) ForceDelete(ctx context.Context, ids ...string) (int64, error) {
	return r.eachID(ctx, "force_delete", ids, func(queries *sqldb.Queries, id string) (int64, error) {
		return queries.DeleteVersionByID(ctx, id)
	})
}

func (r *VersionRepository) Purge(ctx context.Context, ref version.EntityRef) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("version repository: missing database context")
	}

	start := time.Now()
	n, err := queries.DeleteVersionsByVersionable(ctx, sqldb.DeleteVersionsByVersionableParams{
		VersionableType: ref.Type,
		VersionableID:   ref.ID,
	})
	r.observe("purge", start, n, err)
	return n, err
}

// Atomic runs fn in a transaction, or inside the current one when the
// repository is already bound to a transaction.
func (r *VersionRepository) Atomic(ctx context.Context, fn func(history.Store) error) error {
	if r.inTx {
		return fn(r)
	}
	if r.ctx == nil || r.ctx.DB == nil {
		return fmt.Errorf("version repository: missing database context")
	}

	tx, err := r.ctx.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(r.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback error: %w)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// eachID applies op to every id inside one transaction and sums the
// affected rows.
func (r *VersionRepository) eachID(ctx context.Context, operation string, ids []string, op func(*sqldb.Queries, string) (int64, error)) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	start := time.Now()
	var total int64
	err := r.Atomic(ctx, func(s history.Store) error {
		tx, ok := s.(*VersionRepository)
		if !ok {
			return fmt.Errorf("version repository: unexpected store %T", s)
		}
		queries := queriesFromContext(tx.ctx)
		if queries == nil {
			return fmt.Errorf("version repository: missing database context")
		}
		for _, id := range ids {
			n, err := op(queries, id)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		total = 0
	}
	r.observe(operation, start, total, err)
	return total, err
}

func (r *VersionRepository) observe(operation string, start time.Time, rows int64, err error) {
	duration := time.Since(start)
	r.log.LogDbOperation(operation, duration, rows, err)
	r.metrics.RecordDbOperation(operation, err, duration)
}

func adjacentParams(rec version.Record) sqldb.AdjacentVersionParams {
	return sqldb.AdjacentVersionParams{
		VersionableType: rec.Entity.Type,
		VersionableID:   rec.Entity.ID,
		CreatedAt:       formatTime(rec.CreatedAt),
		Seq:             rec.Seq,
	}
}

func optionalRecord(row sqldb.Version, err error) (*version.Record, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	record, err := VersionRecordFromRow(row)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
