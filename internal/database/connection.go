// Package database provides SQLite connection management and the stores
// backing version history and documents.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/vault-md/versionable/db/migrations"
	"github.com/vault-md/versionable/internal/config"
	sqldb "github.com/vault-md/versionable/internal/database/sqlc"

	// Import SQLite driver for database/sql
	_ "modernc.org/sqlite"
)

// MemoryPath opens a shared in-memory database instead of a file.
const MemoryPath = ":memory:"

// busyTimeoutMS bounds how long a writer waits on a locked database.
const busyTimeoutMS = 5000

// Context bundles the version database handle with its generated queries.
type Context struct {
	DB      *sql.DB
	Queries *sqldb.Queries
}

// CreateDatabase opens the version database at dbPath, the configured
// location when empty, and brings its schema up to date.
func CreateDatabase(dbPath string) (*Context, error) {
	if dbPath == "" {
		dbPath = config.GetDBPath()
	}
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	source, err := dsn(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Context{DB: db, Queries: sqldb.New(db)}, nil
}

// dsn builds the modernc.org/sqlite connection string for path. Every
// connection gets foreign keys and a busy timeout; file databases also
// switch to WAL so readers do not block the writer.
func dsn(path string) (string, error) {
	pragmas := url.Values{}
	pragmas.Add("_pragma", "foreign_keys(ON)")
	pragmas.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))

	if path == MemoryPath {
		return "file::memory:?cache=shared&" + pragmas.Encode(), nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve database path: %w", err)
	}
	pragmas.Add("_pragma", "journal_mode(WAL)")
	return "file:" + filepath.ToSlash(abs) + "?" + pragmas.Encode(), nil
}

// CloseDatabase closes the handle. A nil context is a no-op.
func CloseDatabase(ctx *Context) error {
	if ctx == nil || ctx.DB == nil {
		return nil
	}
	return ctx.DB.Close()
}

// ClearDatabase empties the versions and documents tables in one
// transaction. The schema is kept.
func ClearDatabase(ctx *Context) error {
	if ctx == nil || ctx.DB == nil {
		return nil
	}

	bg := context.Background()
	tx, err := ctx.DB.BeginTx(bg, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	queries := ctx.Queries
	if queries == nil {
		queries = sqldb.New(ctx.DB)
	}
	queries = queries.WithTx(tx)

	steps := []struct {
		table string
		run   func(context.Context) error
	}{
		{"versions", queries.DeleteAllVersions},
		{"documents", queries.DeleteAllDocuments},
	}
	for _, step := range steps {
		if err := step.run(bg); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("failed to clear %s: %w (rollback error: %w)", step.table, err, rbErr)
			}
			return fmt.Errorf("failed to clear %s: %w", step.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear transaction: %w", err)
	}
	return nil
}

// migrateUp applies the embedded migrations that are not yet recorded in
// schema_migrations.
func migrateUp(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to initialise migrate driver: %w", err)
	}

	source, err := iofs.New(migrations.Files, ".")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	defer func() {
		_ = source.Close()
	}()

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
