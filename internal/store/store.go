// Package store is the supervisor's single source of truth: a SQLite-backed
// state store holding the project state, the per-role agent states, the
// append-only message log, and the append-only checkpoint log. Every other
// component treats it as the only durable copy of the world (spec §4.1).
package store

import (
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/apmas/apmas/internal/apmaserr"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Store is the concrete SQLite-backed implementation. All methods are safe
// for concurrent use; SQLite's own locking plus WAL mode serializes writers.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database file (and its parent directory) if needed, then
// migrates it up to currentSchemaVersion.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apmaserr.Storage(err, "create state store directory %q", dir)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, apmaserr.Storage(err, "open state store %q", path)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies schema.sql (idempotent via IF NOT EXISTS) and records the
// schema version on first run. Future migrations would be embedded files
// applied here, gated on the recorded version, mirroring the teacher's
// version-gated migrate loop.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return apmaserr.Storage(err, "apply schema")
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return apmaserr.Storage(err, "read schema version")
	}

	if err == sql.ErrNoRows {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, currentSchemaVersion); err != nil {
			return apmaserr.Storage(err, "record initial schema version")
		}
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back on any error.
func (s *Store) withTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apmaserr.Storage(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apmaserr.Storage(err, "commit transaction")
	}
	return nil
}

// nullString converts an empty string to a NULL column, matching how the
// teacher's memory package treats optional text fields.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
