// Package db provides database connection management and operations.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	apperrors "github.com/retroplay/backend/internal/errors"
)

// DB wraps the sql.DB with RetroPlay-specific configuration.
type DB struct {
	*sql.DB

	// InMemory is true when the store holds data for this session only.
	InMemory bool
}

// Open opens the RetroPlay database under dataDir with:
// - WAL mode for concurrent reads alongside the single writer
// - foreign key constraints enabled
// - a single connection, serializing all writers
//
// A failure to open durable storage is reported as STORAGE_UNAVAILABLE;
// callers should treat it as non-fatal and fall back to OpenMemory.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to create data directory", err)
	}

	dbPath := filepath.Join(dataDir, "retroplay.db")

	db, err := open(dbPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to open database", err)
	}
	return &DB{DB: db}, nil
}

// OpenMemory opens an in-memory store for the current session. Used as the
// degraded mode when Open reports STORAGE_UNAVAILABLE.
func OpenMemory() (*DB, error) {
	db, err := open(":memory:")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to open in-memory database", err)
	}
	return &DB{DB: db, InMemory: true}, nil
}

func open(dsn string) (*sql.DB, error) {
	// modernc.org/sqlite: pure Go, no CGO
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite doesn't support multiple writers; one connection also keeps
	// an in-memory database from vanishing between pool connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
