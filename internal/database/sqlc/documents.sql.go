package sqldb

import (
	"context"
	"database/sql"
)

const documentColumns = `type, id, fields, created_at, updated_at, deleted_at`

func scanDocument(row interface{ Scan(dest ...any) error }) (Document, error) {
	var i Document
	err := row.Scan(
		&i.Type,
		&i.ID,
		&i.Fields,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.DeletedAt,
	)
	return i, err
}

const findDocument = `SELECT ` + documentColumns + ` FROM documents
WHERE type = ? AND id = ? AND (? OR deleted_at IS NULL)`

type FindDocumentParams struct {
	Type        string
	ID          string
	WithTrashed bool
}

func (q *Queries) FindDocument(ctx context.Context, arg FindDocumentParams) (Document, error) {
	row := q.db.QueryRowContext(ctx, findDocument, arg.Type, arg.ID, arg.WithTrashed)
	return scanDocument(row)
}

const listDocuments = `SELECT ` + documentColumns + ` FROM documents
WHERE (?1 = '' OR type = ?1) AND (?2 OR deleted_at IS NULL)
ORDER BY type ASC, id ASC`

type ListDocumentsParams struct {
	Type        string
	WithTrashed bool
}

func (q *Queries) ListDocuments(ctx context.Context, arg ListDocumentsParams) ([]Document, error) {
	rows, err := q.db.QueryContext(ctx, listDocuments, arg.Type, arg.WithTrashed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Document
	for rows.Next() {
		i, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertDocument = `INSERT INTO documents (type, id, fields, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`

type InsertDocumentParams struct {
	Type      string
	ID        string
	Fields    string
	CreatedAt string
	UpdatedAt string
}

func (q *Queries) InsertDocument(ctx context.Context, arg InsertDocumentParams) error {
	_, err := q.db.ExecContext(ctx, insertDocument,
		arg.Type,
		arg.ID,
		arg.Fields,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const updateDocument = `UPDATE documents SET fields = ?, updated_at = ?, deleted_at = ?
WHERE type = ? AND id = ?`

type UpdateDocumentParams struct {
	Fields    string
	UpdatedAt string
	DeletedAt sql.NullString
	Type      string
	ID        string
}

func (q *Queries) UpdateDocument(ctx context.Context, arg UpdateDocumentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateDocument,
		arg.Fields,
		arg.UpdatedAt,
		arg.DeletedAt,
		arg.Type,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteDocument = `DELETE FROM documents WHERE type = ? AND id = ?`

type DeleteDocumentParams struct {
	Type string
	ID   string
}

func (q *Queries) DeleteDocument(ctx context.Context, arg DeleteDocumentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDocument, arg.Type, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
