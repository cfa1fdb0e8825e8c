package database

import (
	"encoding/json"
	"fmt"

	sqldb "github.com/vault-md/versionable/internal/database/sqlc"
	"github.com/vault-md/versionable/internal/document"
	"github.com/vault-md/versionable/internal/version"
)

// VersionRecordFromRow converts a versions row to a domain record.
func VersionRecordFromRow(row sqldb.Version) (version.Record, error) {
	contents := version.NewContents()
	if row.Contents.Valid && row.Contents.String != "" {
		if err := json.Unmarshal([]byte(row.Contents.String), &contents); err != nil {
			return version.Record{}, fmt.Errorf("decode contents of version %d: %w", row.Seq, err)
		}
	}

	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return version.Record{}, err
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return version.Record{}, err
	}
	deletedAt, err := optionalTime(row.DeletedAt)
	if err != nil {
		return version.Record{}, err
	}

	id := ""
	if row.ID.Valid {
		id = row.ID.String
	}

	return version.Record{
		ID:        id,
		Seq:       row.Seq,
		Entity:    version.EntityRef{Type: row.VersionableType, ID: row.VersionableID},
		UserID:    optionalString(row.UserID),
		Contents:  contents,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		IsInitial: row.IsInitial != 0,
		DeletedAt: deletedAt,
	}, nil
}

func versionRecordsFromRows(rows []sqldb.Version) ([]version.Record, error) {
	result := make([]version.Record, 0, len(rows))
	for _, row := range rows {
		record, err := VersionRecordFromRow(row)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, nil
}

// VersionInsertParams creates insert parameters from a record.
func VersionInsertParams(rec version.Record) (sqldb.InsertVersionParams, error) {
	contents, err := json.Marshal(rec.Contents)
	if err != nil {
		return sqldb.InsertVersionParams{}, fmt.Errorf("encode contents: %w", err)
	}
	return sqldb.InsertVersionParams{
		UserID:          stringPtrToNullString(rec.UserID),
		VersionableType: rec.Entity.Type,
		VersionableID:   rec.Entity.ID,
		Contents:        nullString(string(contents)),
		IsInitial:       boolToInt64(rec.IsInitial),
		CreatedAt:       formatTime(rec.CreatedAt),
		UpdatedAt:       formatTime(rec.UpdatedAt),
	}, nil
}

// DocumentFromRow converts a documents row to a clean document.
func DocumentFromRow(row sqldb.Document) (*document.Document, error) {
	fields := version.NewContents()
	if err := json.Unmarshal([]byte(row.Fields), &fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s#%s: %w", row.Type, row.ID, err)
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, err
	}
	deletedAt, err := optionalTime(row.DeletedAt)
	if err != nil {
		return nil, err
	}
	return document.Hydrate(row.Type, row.ID, fields, createdAt, updatedAt, deletedAt), nil
}

func encodeFields(doc *document.Document) (string, error) {
	data, err := json.Marshal(doc.Fields())
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(data), nil
}
