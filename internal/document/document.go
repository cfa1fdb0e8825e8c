// Package document implements the host record type versioned by the
// engine: a typed, keyed bag of JSON fields with dirty tracking.
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/vault-md/versionable/internal/version"
)

// Document is a mutable record identified by (Type, ID).
type Document struct {
	Type      string
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time

	fields          version.Contents
	original        version.Contents
	originalDeleted *time.Time
	exists          bool
	user            *string
}

// DeletedAtField carries the soft-delete mark in change sets and states.
// It is never stored among the document fields.
const DeletedAtField = "deleted_at"

// New returns an unsaved document.
func New(docType, id string) (*Document, error) {
	if strings.TrimSpace(docType) == "" {
		return nil, fmt.Errorf("document type is required")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("document id is required")
	}
	return &Document{
		Type:     docType,
		ID:       id,
		fields:   version.NewContents(),
		original: version.NewContents(),
	}, nil
}

// Hydrate rebuilds a persisted document. Its fields become the baseline.
func Hydrate(docType, id string, fields version.Contents, createdAt, updatedAt time.Time, deletedAt *time.Time) *Document {
	return &Document{
		Type:      docType,
		ID:        id,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		DeletedAt:       deletedAt,
		fields:          fields.Clone(),
		original:        fields.Clone(),
		originalDeleted: deletedAt,
		exists:          true,
	}
}

// Exists reports whether the document has been persisted.
func (d *Document) Exists() bool {
	return d.exists
}

func (d *Document) Trashed() bool {
	return d.DeletedAt != nil
}

// BaselineDeletedAt returns the soft-delete mark as last persisted.
func (d *Document) BaselineDeletedAt() *time.Time {
	return d.originalDeleted
}

func (d *Document) Set(field string, value any) {
	d.fields.Set(field, value)
}

// Fill sets every field of values.
func (d *Document) Fill(values version.Contents) {
	for _, key := range values.Keys() {
		d.fields.Set(key, values.Value(key))
	}
}

func (d *Document) Get(field string) (any, bool) {
	return d.fields.Get(field)
}

// Fields returns a copy of the current field values.
func (d *Document) Fields() version.Contents {
	return d.fields.Clone()
}

// Dirty reports whether any field differs from the persisted state.
func (d *Document) Dirty() bool {
	return !d.ChangeSet().IsEmpty()
}

// WithUser attributes the next recorded version to id.
func (d *Document) WithUser(id string) *Document {
	if id == "" {
		d.user = nil
		return d
	}
	d.user = &id
	return d
}

// SyncOriginal marks the current fields and soft-delete mark as persisted.
func (d *Document) SyncOriginal() {
	d.original = d.fields.Clone()
	d.originalDeleted = d.DeletedAt
	d.exists = true
}

func (d *Document) Ref() version.EntityRef {
	return version.EntityRef{Type: d.Type, ID: d.ID}
}

// ChangeSet returns new fields and fields whose JSON value changed since
// the last SyncOriginal. A trash or restore shows up as deleted_at, null
// once restored.
func (d *Document) ChangeSet() version.Contents {
	changes := version.NewContents()
	for _, key := range d.fields.Keys() {
		value := d.fields.Value(key)
		old, ok := d.original.Get(key)
		if !ok || !version.ValuesEqual(old, value) {
			changes.Set(key, value)
		}
	}
	if !sameTime(d.originalDeleted, d.DeletedAt) {
		changes.Set(DeletedAtField, deletedValue(d.DeletedAt))
	}
	return changes
}

// RawState returns the current fields, plus deleted_at while trashed.
func (d *Document) RawState() version.Contents {
	state := d.fields.Clone()
	if d.DeletedAt != nil {
		state.Set(DeletedAtField, deletedValue(d.DeletedAt))
	}
	return state
}

// BaselineState returns the persisted fields, plus deleted_at when the
// persisted document was trashed.
func (d *Document) BaselineState() version.Contents {
	state := d.original.Clone()
	if d.originalDeleted != nil {
		state.Set(DeletedAtField, deletedValue(d.originalDeleted))
	}
	return state
}

func (d *Document) AttributedUserID() *string {
	return d.user
}

// ApplyState stages state on the document; it is persisted on the next save.
// deleted_at is not a field and is left alone: trash and restore are
// separate operations.
func (d *Document) ApplyState(state version.Contents) {
	d.Fill(state.Without(DeletedAtField))
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func deletedValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
