package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqldb "github.com/vault-md/versionable/internal/database/sqlc"
	"github.com/vault-md/versionable/internal/document"
)

type DocumentRepository struct {
	ctx *Context
}

func NewDocumentRepository(dbCtx *Context) *DocumentRepository {
	return &DocumentRepository{ctx: dbCtx}
}

// WithTx returns a repository whose statements run inside tx.
func (r *DocumentRepository) WithTx(tx *sql.Tx) *DocumentRepository {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		queries = sqldb.New(tx)
	}
	var db *sql.DB
	if r.ctx != nil {
		db = r.ctx.DB
	}
	return &DocumentRepository{ctx: &Context{DB: db, Queries: queries.WithTx(tx)}}
}

// Find returns the document or nil when it does not exist. Soft-deleted
// documents are returned only when withTrashed is set.
func (r *DocumentRepository) Find(ctx context.Context, docType, id string, withTrashed bool) (*document.Document, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("document repository: missing database context")
	}

	row, err := queries.FindDocument(ctx, sqldb.FindDocumentParams{Type: docType, ID: id, WithTrashed: withTrashed})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return DocumentFromRow(row)
}

// List returns documents ordered by type and id. An empty docType lists
// every type.
func (r *DocumentRepository) List(ctx context.Context, docType string, withTrashed bool) ([]*document.Document, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("document repository: missing database context")
	}

	rows, err := queries.ListDocuments(ctx, sqldb.ListDocumentsParams{Type: docType, WithTrashed: withTrashed})
	if err != nil {
		return nil, err
	}

	result := make([]*document.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := DocumentFromRow(row)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, nil
}

func (r *DocumentRepository) Insert(ctx context.Context, doc *document.Document) error {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return fmt.Errorf("document repository: missing database context")
	}

	fields, err := encodeFields(doc)
	if err != nil {
		return err
	}
	err = queries.InsertDocument(ctx, sqldb.InsertDocumentParams{
		Type:      doc.Type,
		ID:        doc.ID,
		Fields:    fields,
		CreatedAt: formatTime(doc.CreatedAt),
		UpdatedAt: formatTime(doc.UpdatedAt),
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("document %s: %w", doc.Ref(), ErrAlreadyExists)
		}
		return err
	}
	return nil
}

// Update writes fields, updated_at and deleted_at of an existing document.
func (r *DocumentRepository) Update(ctx context.Context, doc *document.Document) error {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return fmt.Errorf("document repository: missing database context")
	}

	fields, err := encodeFields(doc)
	if err != nil {
		return err
	}
	affected, err := queries.UpdateDocument(ctx, sqldb.UpdateDocumentParams{
		Fields:    fields,
		UpdatedAt: formatTime(doc.UpdatedAt),
		DeletedAt: timePtrToNullString(doc.DeletedAt),
		Type:      doc.Type,
		ID:        doc.ID,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", doc.Ref(), ErrNotFound)
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, docType, id string) (bool, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return false, fmt.Errorf("document repository: missing database context")
	}

	affected, err := queries.DeleteDocument(ctx, sqldb.DeleteDocumentParams{Type: docType, ID: id})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
