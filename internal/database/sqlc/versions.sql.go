package sqldb

import (
	"context"
	"database/sql"
)

const versionColumns = `seq, id, user_id, versionable_type, versionable_id, contents, is_initial, created_at, updated_at, deleted_at`

func scanVersion(row interface{ Scan(dest ...any) error }) (Version, error) {
	var i Version
	err := row.Scan(
		&i.Seq,
		&i.ID,
		&i.UserID,
		&i.VersionableType,
		&i.VersionableID,
		&i.Contents,
		&i.IsInitial,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.DeletedAt,
	)
	return i, err
}

func (q *Queries) queryVersions(ctx context.Context, query string, args ...any) ([]Version, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Version
	for rows.Next() {
		i, err := scanVersion(rows)
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

const insertVersion = `INSERT INTO versions (user_id, versionable_type, versionable_id, contents, is_initial, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING seq`

type InsertVersionParams struct {
	UserID          sql.NullString
	VersionableType string
	VersionableID   string
	Contents        sql.NullString
	IsInitial       int64
	CreatedAt       string
	UpdatedAt       string
}

func (q *Queries) InsertVersion(ctx context.Context, arg InsertVersionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertVersion,
		arg.UserID,
		arg.VersionableType,
		arg.VersionableID,
		arg.Contents,
		arg.IsInitial,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	var seq int64
	err := row.Scan(&seq)
	return seq, err
}

const setVersionID = `UPDATE versions SET id = ? WHERE seq = ?`

type SetVersionIDParams struct {
	ID  string
	Seq int64
}

func (q *Queries) SetVersionID(ctx context.Context, arg SetVersionIDParams) error {
	_, err := q.db.ExecContext(ctx, setVersionID, arg.ID, arg.Seq)
	return err
}

const findVersionByID = `SELECT ` + versionColumns + ` FROM versions
WHERE id = ? AND (? OR deleted_at IS NULL)`

type FindVersionByIDParams struct {
	ID          string
	WithTrashed bool
}

func (q *Queries) FindVersionByID(ctx context.Context, arg FindVersionByIDParams) (Version, error) {
	row := q.db.QueryRowContext(ctx, findVersionByID, arg.ID, arg.WithTrashed)
	return scanVersion(row)
}

// Visibility values accepted by ListVersions.
const (
	VisibilityLive    = "live"
	VisibilityWith    = "with"
	VisibilityTrashed = "only"
)

const listVersionsOldest = `SELECT ` + versionColumns + ` FROM versions
WHERE versionable_type = ?1 AND versionable_id = ?2
  AND CASE ?3 WHEN 'only' THEN deleted_at IS NOT NULL WHEN 'with' THEN 1 ELSE deleted_at IS NULL END
ORDER BY created_at ASC, seq ASC
LIMIT ?4 OFFSET ?5`

const listVersionsNewest = `SELECT ` + versionColumns + ` FROM versions
WHERE versionable_type = ?1 AND versionable_id = ?2
  AND CASE ?3 WHEN 'only' THEN deleted_at IS NOT NULL WHEN 'with' THEN 1 ELSE deleted_at IS NULL END
ORDER BY created_at DESC, seq DESC
LIMIT ?4 OFFSET ?5`

type ListVersionsParams struct {
	VersionableType string
	VersionableID   string
	Visibility      string
	Newest          bool
	// Limit of -1 returns every row.
	Limit  int64
	Offset int64
}

func (q *Queries) ListVersions(ctx context.Context, arg ListVersionsParams) ([]Version, error) {
	query := listVersionsOldest
	if arg.Newest {
		query = listVersionsNewest
	}
	return q.queryVersions(ctx, query,
		arg.VersionableType,
		arg.VersionableID,
		arg.Visibility,
		arg.Limit,
		arg.Offset,
	)
}

const countVersions = `SELECT COUNT(*) FROM versions
WHERE versionable_type = ? AND versionable_id = ? AND (? OR deleted_at IS NULL)`

type CountVersionsParams struct {
	VersionableType string
	VersionableID   string
	WithTrashed     bool
}

func (q *Queries) CountVersions(ctx context.Context, arg CountVersionsParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countVersions, arg.VersionableType, arg.VersionableID, arg.WithTrashed)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const previousVersion = `SELECT ` + versionColumns + ` FROM versions
WHERE versionable_type = ?1 AND versionable_id = ?2 AND deleted_at IS NULL
  AND (created_at < ?3 OR (created_at = ?3 AND seq < ?4))
ORDER BY created_at DESC, seq DESC
LIMIT 1`

const nextVersion = `SELECT ` + versionColumns + ` FROM versions
WHERE versionable_type = ?1 AND versionable_id = ?2 AND deleted_at IS NULL
  AND (created_at > ?3 OR (created_at = ?3 AND seq > ?4))
ORDER BY created_at ASC, seq ASC
LIMIT 1`

type AdjacentVersionParams struct {
	VersionableType string
	VersionableID   string
	CreatedAt       string
	Seq             int64
}

func (q *Queries) PreviousVersion(ctx context.Context, arg AdjacentVersionParams) (Version, error) {
	row := q.db.QueryRowContext(ctx, previousVersion, arg.VersionableType, arg.VersionableID, arg.CreatedAt, arg.Seq)
	return scanVersion(row)
}

func (q *Queries) NextVersion(ctx context.Context, arg AdjacentVersionParams) (Version, error) {
	row := q.db.QueryRowContext(ctx, nextVersion, arg.VersionableType, arg.VersionableID, arg.CreatedAt, arg.Seq)
	return scanVersion(row)
}

const versionAt = `SELECT ` + versionColumns + ` FROM versions
WHERE versionable_type = ? AND versionable_id = ? AND deleted_at IS NULL AND created_at <= ?
ORDER BY created_at DESC, seq DESC
LIMIT 1`

type VersionAtParams struct {
	VersionableType string
	VersionableID   string
	CreatedAt       string
}

func (q *Queries) VersionAt(ctx context.Context, arg VersionAtParams) (Version, error) {
	row := q.db.QueryRowContext(ctx, versionAt, arg.VersionableType, arg.VersionableID, arg.CreatedAt)
	return scanVersion(row)
}

const softDeleteVersion = `UPDATE versions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

type SoftDeleteVersionParams struct {
	DeletedAt string
	ID        string
}

func (q *Queries) SoftDeleteVersion(ctx context.Context, arg SoftDeleteVersionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, softDeleteVersion, arg.DeletedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const restoreVersion = `UPDATE versions SET deleted_at = NULL WHERE id = ? AND deleted_at IS NOT NULL`

func (q *Queries) RestoreVersion(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, restoreVersion, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteVersionByID = `DELETE FROM versions WHERE id = ?`

func (q *Queries) DeleteVersionByID(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteVersionByID, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteVersionsByVersionable = `DELETE FROM versions WHERE versionable_type = ? AND versionable_id = ?`

type DeleteVersionsByVersionableParams struct {
	VersionableType string
	VersionableID   string
}

func (q *Queries) DeleteVersionsByVersionable(ctx context.Context, arg DeleteVersionsByVersionableParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteVersionsByVersionable, arg.VersionableType, arg.VersionableID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
