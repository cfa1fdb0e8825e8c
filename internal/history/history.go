package history

import (
	"context"
	"fmt"
	"time"

	"github.com/vault-md/versionable/internal/version"
)

// History layers navigation, retention and guarded deletion on a Store.
type History struct {
	store Store
	now   func() time.Time
}

// Option configures a History.
type Option func(*History)

// WithClock overrides the clock used for soft-delete timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *History) {
		h.now = now
	}
}

func New(store Store, opts ...Option) *History {
	h := &History{store: store, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Store exposes the underlying store.
func (h *History) Store() Store {
	return h.store
}

// WithStore returns a History bound to another store, typically the
// transactional view handed out by Store.Atomic.
func (h *History) WithStore(store Store) *History {
	return &History{store: store, now: h.now}
}

func (h *History) Append(ctx context.Context, rec *version.Record) error {
	if rec.Entity.IsZero() {
		return fmt.Errorf("history: record has no owning entity")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = h.now()
	}
	return h.store.Append(ctx, rec)
}

// Get returns the live record with id.
func (h *History) Get(ctx context.Context, id string) (*version.Record, error) {
	return h.store.FindByID(ctx, id, false)
}

// GetWithTrashed returns the record with id even when soft-deleted.
func (h *History) GetWithTrashed(ctx context.Context, id string) (*version.Record, error) {
	return h.store.FindByID(ctx, id, true)
}

func (h *History) List(ctx context.Context, ref version.EntityRef, opts ListOptions) ([]version.Record, error) {
	return h.store.List(ctx, ref, opts)
}

func (h *History) Count(ctx context.Context, ref version.EntityRef) (int64, error) {
	return h.store.Count(ctx, ref, false)
}

// Latest returns the newest live record or nil.
func (h *History) Latest(ctx context.Context, ref version.EntityRef) (*version.Record, error) {
	records, err := h.store.List(ctx, ref, ListOptions{Newest: true, Limit: 1})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

// First returns the initial record, falling back to the oldest live record
// for histories written before the initial flag existed.
func (h *History) First(ctx context.Context, ref version.EntityRef) (*version.Record, error) {
	records, err := h.store.List(ctx, ref, ListOptions{})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	for i := range records {
		if records[i].IsInitial {
			return &records[i], nil
		}
	}
	return &records[0], nil
}

func (h *History) Previous(ctx context.Context, rec version.Record) (*version.Record, error) {
	return h.store.Previous(ctx, rec)
}

func (h *History) Next(ctx context.Context, rec version.Record) (*version.Record, error) {
	return h.store.Next(ctx, rec)
}

// At returns the record in effect at t: nil when t precedes the first
// record, the latest record when t is past it.
func (h *History) At(ctx context.Context, ref version.EntityRef, t time.Time) (*version.Record, error) {
	return h.store.At(ctx, ref, t)
}

// Trim removes every live non-initial record beyond the keep newest. The
// initial record never counts against keep and is never removed. keep <= 0
// disables trimming.
func (h *History) Trim(ctx context.Context, ref version.EntityRef, keep int, force bool) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	records, err := h.store.List(ctx, ref, ListOptions{Newest: true})
	if err != nil {
		return 0, err
	}

	var doomed []string
	kept := 0
	for _, r := range records {
		if r.IsInitial {
			continue
		}
		if kept < keep {
			kept++
			continue
		}
		doomed = append(doomed, r.ID)
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	if force {
		return h.store.ForceDelete(ctx, doomed...)
	}
	return h.store.SoftDelete(ctx, h.now(), doomed...)
}

// Delete removes the listed records. It refuses, without deleting
// anything, when any of them is an initial record.
func (h *History) Delete(ctx context.Context, force bool, ids ...string) (int64, error) {
	for _, id := range ids {
		rec, err := h.store.FindByID(ctx, id, true)
		if err != nil {
			return 0, err
		}
		if rec.IsInitial {
			return 0, &version.ProtectedRecordError{ID: id}
		}
	}
	return h.DeleteUnprotected(ctx, force, ids...)
}

// DeleteUnprotected removes the listed records including initial ones.
func (h *History) DeleteUnprotected(ctx context.Context, force bool, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if force {
		return h.store.ForceDelete(ctx, ids...)
	}
	return h.store.SoftDelete(ctx, h.now(), ids...)
}

// Restore clears the soft-delete mark on the listed records.
func (h *History) Restore(ctx context.Context, ids ...string) (int64, error) {
	return h.store.Restore(ctx, ids...)
}

// Purge hard-deletes the whole history of ref.
func (h *History) Purge(ctx context.Context, ref version.EntityRef) (int64, error) {
	return h.store.Purge(ctx, ref)
}
