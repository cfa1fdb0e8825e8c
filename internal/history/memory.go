package history

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vault-md/versionable/internal/version"
)

// MemoryStore is an in-process Store. Records are kept sorted by
// (CreatedAt, Seq).
type MemoryStore struct {
	mu      sync.RWMutex
	txMu    sync.Mutex
	records []version.Record
	seq     int64
	ids     version.IDGenerator
}

// NewMemoryStore creates an empty store. A nil generator means sequential ids.
func NewMemoryStore(ids version.IDGenerator) *MemoryStore {
	if ids == nil {
		ids = version.SequentialIDs{}
	}
	return &MemoryStore{ids: ids}
}

func (s *MemoryStore) Append(_ context.Context, rec *version.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rec.Seq = s.seq
	if rec.ID == "" {
		rec.ID = s.ids.NextID(rec.Seq)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	stored := rec.Clone()
	idx, _ := slices.BinarySearchFunc(s.records, stored, version.Compare)
	s.records = slices.Insert(s.records, idx, stored)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string, withTrashed bool) (*version.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ID == id {
			if r.Trashed() && !withTrashed {
				break
			}
			out := r.Clone()
			return &out, nil
		}
	}
	return nil, &version.NotFoundError{ID: id}
}

func (s *MemoryStore) List(_ context.Context, ref version.EntityRef, opts ListOptions) ([]version.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]version.Record, 0)
	for _, r := range s.records {
		if r.Entity != ref {
			continue
		}
		if opts.OnlyTrashed && !r.Trashed() {
			continue
		}
		if !opts.OnlyTrashed && !opts.WithTrashed && r.Trashed() {
			continue
		}
		out = append(out, r.Clone())
	}
	if opts.Newest {
		slices.Reverse(out)
	}
	return paginate(out, opts), nil
}

func (s *MemoryStore) Count(_ context.Context, ref version.EntityRef, withTrashed bool) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if r.Entity == ref && (withTrashed || !r.Trashed()) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Previous(_ context.Context, rec version.Record) (*version.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if r.Entity != rec.Entity || r.Trashed() {
			continue
		}
		if r.Before(rec) {
			out := r.Clone()
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Next(_ context.Context, rec version.Record) (*version.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.Entity != rec.Entity || r.Trashed() {
			continue
		}
		if rec.Before(r) {
			out := r.Clone()
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) At(_ context.Context, ref version.EntityRef, t time.Time) (*version.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if r.Entity != ref || r.Trashed() {
			continue
		}
		if !r.CreatedAt.After(t) {
			out := r.Clone()
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, at time.Time, ids ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := idSet(ids)
	var n int64
	for i := range s.records {
		r := &s.records[i]
		if _, ok := wanted[r.ID]; !ok || r.Trashed() {
			continue
		}
		deletedAt := at
		r.DeletedAt = &deletedAt
		r.UpdatedAt = at
		n++
	}
	return n, nil
}

func (s *MemoryStore) Restore(_ context.Context, ids ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := idSet(ids)
	var n int64
	for i := range s.records {
		r := &s.records[i]
		if _, ok := wanted[r.ID]; !ok || !r.Trashed() {
			continue
		}
		r.DeletedAt = nil
		n++
	}
	return n, nil
}

func (s *MemoryStore) ForceDelete(_ context.Context, ids ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := idSet(ids)
	before := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r version.Record) bool {
		_, ok := wanted[r.ID]
		return ok
	})
	return int64(before - len(s.records)), nil
}

func (s *MemoryStore) Purge(_ context.Context, ref version.EntityRef) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r version.Record) bool {
		return r.Entity == ref
	})
	return int64(before - len(s.records)), nil
}

// Atomic restores the pre-call state when fn fails. Atomic calls are
// serialised against each other.
func (s *MemoryStore) Atomic(_ context.Context, fn func(Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	saved := make([]version.Record, len(s.records))
	for i, r := range s.records {
		saved[i] = r.Clone()
	}
	savedSeq := s.seq
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.records = saved
		s.seq = savedSeq
		s.mu.Unlock()
		return err
	}
	return nil
}

func idSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
