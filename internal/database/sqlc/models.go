package sqldb

import "database/sql"

type Version struct {
	Seq             int64
	ID              sql.NullString
	UserID          sql.NullString
	VersionableType string
	VersionableID   string
	Contents        sql.NullString
	IsInitial       int64
	CreatedAt       string
	UpdatedAt       string
	DeletedAt       sql.NullString
}

type Document struct {
	Type      string
	ID        string
	Fields    string
	CreatedAt string
	UpdatedAt string
	DeletedAt sql.NullString
}
