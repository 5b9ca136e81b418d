// Package store provides SQLite-backed persistence for sessions,
// memberships, messages, and users.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Sub-second precision matters for joined_at ordering and message times.
const dbTimeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// Store provides database access for all SafeTalk entities.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// WAL for concurrent readers, busy timeout against "database is locked".
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable FK: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL CHECK(length(name) > 0 AND length(name) <= 64),
		role       TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id                     TEXT PRIMARY KEY,
		title                  TEXT    NOT NULL CHECK(length(title) > 0),
		description            TEXT    NOT NULL DEFAULT '',
		mode                   TEXT    NOT NULL CHECK(mode IN ('text','audio')),
		max_participants       INTEGER NOT NULL CHECK(max_participants BETWEEN 2 AND 50),
		is_private             INTEGER NOT NULL DEFAULT 0,
		requires_approval      INTEGER NOT NULL DEFAULT 0,
		allow_join_after_start INTEGER NOT NULL DEFAULT 0,
		state                  TEXT    NOT NULL CHECK(state IN ('scheduled','active','ended')),
		creator_id             TEXT    NOT NULL,
		created_at             TEXT    NOT NULL,
		started_at             TEXT,
		ended_at               TEXT
	);

	CREATE TABLE IF NOT EXISTS memberships (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL,
		role       TEXT NOT NULL CHECK(role IN ('creator','moderator','participant')),
		status     TEXT NOT NULL CHECK(status IN ('invited','pending','active','removed')),
		joined_at  TEXT NOT NULL,
		PRIMARY KEY (session_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id         TEXT    NOT NULL,
		session_id TEXT    NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		sender_id  TEXT    NOT NULL,
		type       TEXT    NOT NULL CHECK(type IN ('text','audio')),
		payload    TEXT    NOT NULL,
		sent_at    TEXT    NOT NULL,
		PRIMARY KEY (session_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_status
		ON memberships(session_id, status, joined_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// inTx runs fn inside a transaction, rolling back on error. Every
// read-check-write in this package goes through it so an operation
// either commits fully or not at all.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
