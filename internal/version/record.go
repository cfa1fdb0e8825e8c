package version

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// EntityRef identifies the owner of a history: a type tag plus the entity id.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s#%s", r.Type, r.ID)
}

func (r EntityRef) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// Record is one persisted entry in an entity's history.
//
// Seq is assigned by the store on append and is strictly increasing across
// the store, so (CreatedAt, Seq) totally orders records even when several
// share a timestamp. ID is the public identifier; under the sequential
// strategy it is the decimal form of Seq.
type Record struct {
	ID        string     `json:"id"`
	Seq       int64      `json:"seq"`
	Entity    EntityRef  `json:"entity"`
	UserID    *string    `json:"user_id,omitempty"`
	Contents  Contents   `json:"contents"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	IsInitial bool       `json:"is_initial"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Trashed reports whether the record has been soft-deleted.
func (r Record) Trashed() bool {
	return r.DeletedAt != nil
}

// Before reports whether r sorts strictly before other in history order.
func (r Record) Before(other Record) bool {
	return Compare(r, other) < 0
}

// Clone returns a deep copy so callers can hand records out without sharing
// the contents map or pointer fields.
func (r Record) Clone() Record {
	out := r
	out.Contents = r.Contents.Clone()
	if r.UserID != nil {
		uid := *r.UserID
		out.UserID = &uid
	}
	if r.DeletedAt != nil {
		at := *r.DeletedAt
		out.DeletedAt = &at
	}
	return out
}

// Compare orders records by (CreatedAt, Seq) for use with slices.SortFunc.
func Compare(a, b Record) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

// SortRecords orders records oldest first.
func SortRecords(records []Record) {
	slices.SortFunc(records, Compare)
}
