// Package history stores and navigates the ordered version records of an
// entity and enforces retention.
package history

import (
	"context"
	"time"

	"github.com/vault-md/versionable/internal/version"
)

// ListOptions controls ordering, visibility and pagination of List.
type ListOptions struct {
	// Newest returns records newest first.
	Newest      bool
	WithTrashed bool
	OnlyTrashed bool
	Limit       int
	Offset      int
}

// Store is the persistence port for version records.
//
// Implementations order records by (CreatedAt, Seq) and assign Seq on
// Append. Lookups that may legitimately be empty (Previous, Next, At)
// return a nil record and no error.
type Store interface {
	// Append assigns Seq and, when empty, ID, then persists the record. It
	// never changes the id or relative order of existing records.
	Append(ctx context.Context, rec *version.Record) error
	FindByID(ctx context.Context, id string, withTrashed bool) (*version.Record, error)
	List(ctx context.Context, ref version.EntityRef, opts ListOptions) ([]version.Record, error)
	Count(ctx context.Context, ref version.EntityRef, withTrashed bool) (int64, error)
	// Previous returns the latest live record strictly before rec.
	Previous(ctx context.Context, rec version.Record) (*version.Record, error)
	// Next returns the earliest live record strictly after rec.
	Next(ctx context.Context, rec version.Record) (*version.Record, error)
	// At returns the latest live record created at or before t.
	At(ctx context.Context, ref version.EntityRef, t time.Time) (*version.Record, error)
	SoftDelete(ctx context.Context, at time.Time, ids ...string) (int64, error)
	Restore(ctx context.Context, ids ...string) (int64, error)
	ForceDelete(ctx context.Context, ids ...string) (int64, error)
	// Purge hard-deletes every record of the entity.
	Purge(ctx context.Context, ref version.EntityRef) (int64, error)
	// Atomic runs fn against a store whose writes commit or roll back
	// together.
	Atomic(ctx context.Context, fn func(Store) error) error
}

func paginate(records []version.Record, opts ListOptions) []version.Record {
	if opts.Offset > 0 {
		if opts.Offset >= len(records) {
			return []version.Record{}
		}
		records = records[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(records) {
		records = records[:opts.Limit]
	}
	return records
}
