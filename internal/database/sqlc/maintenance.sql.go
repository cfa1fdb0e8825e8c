package sqldb

import "context"

const deleteAllVersions = `DELETE FROM versions`

func (q *Queries) DeleteAllVersions(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllVersions)
	return err
}

const deleteAllDocuments = `DELETE FROM documents`

func (q *Queries) DeleteAllDocuments(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllDocuments)
	return err
}
