package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ashu01304/nostr-forms-sub000/protocol"
)

// Store is a SQLite-backed cache of raw relay events, grouped by the
// (owner, formID) pair they belong to.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema
// exists. Pass ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			form_id TEXT NOT NULL,
			author TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			raw BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_form ON events(owner, form_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// PutEvent stores an event under the given form. Events without an ID are
// rejected; an event already present is silently skipped.
func (s *Store) PutEvent(ctx context.Context, owner, formID string, ev *protocol.Event) error {
	if ev == nil || ev.ID == "" {
		return fmt.Errorf("event has no id")
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	query := `INSERT OR IGNORE INTO events (id, owner, form_id, author, created_at, raw)
	          VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, ev.ID, owner, formID, ev.PubKey, ev.CreatedAt, raw); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

// Events returns every stored event for the form, ordered oldest first.
func (s *Store) Events(ctx context.Context, owner, formID string) ([]*protocol.Event, error) {
	query := `SELECT raw FROM events WHERE owner = ? AND form_id = ?
	          ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, owner, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*protocol.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var ev protocol.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// LatestCreatedAt returns the newest created_at among stored events for the
// form, or 0 when nothing is stored yet.
func (s *Store) LatestCreatedAt(ctx context.Context, owner, formID string) (int64, error) {
	var latest sql.NullInt64
	query := `SELECT MAX(created_at) FROM events WHERE owner = ? AND form_id = ?`
	if err := s.db.QueryRowContext(ctx, query, owner, formID).Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to query latest created_at: %w", err)
	}
	if !latest.Valid {
		return 0, nil
	}
	return latest.Int64, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
