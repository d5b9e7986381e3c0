// Package store records build provenance in a local sqlite database:
// which image was built from which pinned base, and the cache keys of
// its dependency and application layers. The records make layer cache
// behavior observable across builds.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migration/*.sql
var migrationFiles embed.FS

// Open opens (or creates) the provenance database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open build db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping build db: %w", err)
	}

	return db, nil
}

// InitSchema applies the embedded schema. Safe to run on every start.
func InitSchema(ctx context.Context, db *sql.DB) error {
	schema, err := migrationFiles.ReadFile("migration/001_initial.sql")
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	_, err = db.ExecContext(ctx, string(schema))
	if err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	return nil
}
