package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vault-md/versionable/internal/database"
	"github.com/vault-md/versionable/internal/document"
	"github.com/vault-md/versionable/internal/history"
	"github.com/vault-md/versionable/internal/reconstruct"
	"github.com/vault-md/versionable/internal/version"
	"github.com/vault-md/versionable/internal/versioning"
)

// ErrNotFound is returned when a requested document is not found.
var ErrNotFound = errors.New("document not found")

// DocumentService persists documents and records their versions in the
// same SQLite transaction.
type DocumentService struct {
	ctx        *database.Context
	versions   *database.VersionRepository
	controller *versioning.Controller
	now        func() time.Time
}

// Option configures a DocumentService.
type Option func(*DocumentService)

func WithClock(now func() time.Time) Option {
	return func(s *DocumentService) {
		s.now = now
	}
}

// NewDocumentService creates a DocumentService. controller must write to a
// history backed by versions.
func NewDocumentService(ctx *database.Context, versions *database.VersionRepository, controller *versioning.Controller, opts ...Option) *DocumentService {
	s := &DocumentService{
		ctx:        ctx,
		versions:   versions,
		controller: controller,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Find loads a document. Soft-deleted documents are included when
// withTrashed is set.
func (s *DocumentService) Find(ctx context.Context, docType, id string, withTrashed bool) (*document.Document, error) {
	doc, err := database.NewDocumentRepository(s.ctx).Find(ctx, docType, id, withTrashed)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%s#%s: %w", docType, id, ErrNotFound)
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, docType string, withTrashed bool) ([]*document.Document, error) {
	return database.NewDocumentRepository(s.ctx).List(ctx, docType, withTrashed)
}

// Load implements version.Loader over live documents.
func (s *DocumentService) Load(ctx context.Context, ref version.EntityRef) (version.Entity, error) {
	return s.Find(ctx, ref.Type, ref.ID, true)
}

// Save inserts a new document and records its initial version, or writes
// the pending changes of an existing one and records an update. A clean
// existing document is left untouched and nil is returned.
func (s *DocumentService) Save(ctx context.Context, doc *document.Document) (*version.Record, error) {
	if doc.Exists() && !doc.Dirty() {
		return nil, nil
	}

	var rec *version.Record
	now := s.now()
	err := s.withTx(ctx, func(ctx context.Context, docs *database.DocumentRepository, ctrl *versioning.Controller) error {
		var err error
		if !doc.Exists() {
			doc.CreatedAt, doc.UpdatedAt = now, now
			if err := docs.Insert(ctx, doc); err != nil {
				return err
			}
			rec, err = ctrl.Created(ctx, doc)
			return err
		}

		doc.UpdatedAt = now
		if err := docs.Update(ctx, doc); err != nil {
			return err
		}
		rec, err = ctrl.Updated(ctx, doc)
		return err
	})
	if err != nil {
		return nil, err
	}

	doc.SyncOriginal()
	return rec, nil
}

// Delete removes a document. A soft delete keeps the row and its history
// and records the deletion mark with any pending changes; a forced delete
// removes the row and purges its history.
func (s *DocumentService) Delete(ctx context.Context, doc *document.Document, force bool) (*version.Record, error) {
	if !doc.Exists() {
		return nil, fmt.Errorf("%s: %w", doc.Ref(), ErrNotFound)
	}

	var rec *version.Record
	now := s.now()
	err := s.withTx(ctx, func(ctx context.Context, docs *database.DocumentRepository, ctrl *versioning.Controller) error {
		if force {
			if _, err := docs.Delete(ctx, doc.Type, doc.ID); err != nil {
				return err
			}
			_, err := ctrl.Deleted(ctx, doc, true)
			return err
		}

		doc.UpdatedAt = now
		doc.DeletedAt = &now
		if err := docs.Update(ctx, doc); err != nil {
			return err
		}
		var err error
		rec, err = ctrl.Deleted(ctx, doc, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	doc.SyncOriginal()
	return rec, nil
}

// Restore clears the soft-delete mark of a document and records the
// restore like an update. A live document is left untouched.
func (s *DocumentService) Restore(ctx context.Context, doc *document.Document) (*version.Record, error) {
	if !doc.Trashed() {
		return nil, nil
	}

	var rec *version.Record
	now := s.now()
	err := s.withTx(ctx, func(ctx context.Context, docs *database.DocumentRepository, ctrl *versioning.Controller) error {
		doc.DeletedAt = nil
		doc.UpdatedAt = now
		if err := docs.Update(ctx, doc); err != nil {
			return err
		}
		var err error
		rec, err = ctrl.Updated(ctx, doc)
		return err
	})
	if err != nil {
		doc.DeletedAt = doc.BaselineDeletedAt()
		return nil, err
	}

	doc.SyncOriginal()
	return rec, nil
}

// Revert stages the state of versionID on doc and saves it, recording the
// revert as a new version. Later versions are kept.
func (s *DocumentService) Revert(ctx context.Context, doc *document.Document, versionID string) (*version.Record, version.Contents, error) {
	r := reconstruct.New(s.controller.Registry(), s.controller.History())
	state, err := r.RevertID(ctx, doc, versionID)
	if err != nil {
		return nil, version.Contents{}, err
	}
	rec, err := s.Save(ctx, doc)
	if err != nil {
		return nil, version.Contents{}, err
	}
	return rec, state, nil
}

// CreateVersion records the document's pending changes merged with
// overrides without saving the document.
func (s *DocumentService) CreateVersion(ctx context.Context, doc *document.Document, overrides version.Contents, at time.Time) (*version.Record, error) {
	var opts []versioning.CreateOption
	if !at.IsZero() {
		opts = append(opts, versioning.At(at))
	}
	return s.controller.CreateVersion(ctx, doc, overrides, opts...)
}

func (s *DocumentService) withTx(ctx context.Context, fn func(context.Context, *database.DocumentRepository, *versioning.Controller) error) error {
	if s.ctx == nil || s.ctx.DB == nil {
		return fmt.Errorf("document service: missing database context")
	}

	tx, err := s.ctx.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	docs := database.NewDocumentRepository(s.ctx).WithTx(tx)
	ctrl := s.controllerFor(tx)

	if err := fn(ctx, docs, ctrl); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return err
	}

	return nil
}

func (s *DocumentService) controllerFor(tx *sql.Tx) *versioning.Controller {
	store := s.versions.WithTx(tx)
	return s.controller.WithHistory(s.controller.History().WithStore(history.Store(store)))
}
