// Package db provides local record store access for the SEMS sync client.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB with client-specific configuration.
type DB struct {
	*sql.DB
}

// Open opens the local SQLite store under dataDir. The database is opened
// with WAL mode for concurrent reads during a sync pass and foreign key
// constraints enabled. SQLite allows a single writer, which matches the
// single-pass invariant of the sync engine.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sems.db")

	// modernc.org/sqlite is pure Go, no CGO needed on the workstation builds
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	wrapped := &DB{db}
	if err := wrapped.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return wrapped, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// InitSchema creates all tables if they do not exist.
func (db *DB) InitSchema() error {
	return InitSchema(db.DB)
}
