// Package sqlite keeps save slots and the event log in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AaronLay10/StepwiseEngine/internal/savefile"
	"github.com/AaronLay10/StepwiseEngine/internal/walk"
)

// Store is a single-writer SQLite database.
type Store struct {
	db        *sql.DB
	sessionID string
}

// Open creates or opens the database at path.
func Open(path, sessionID string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, sessionID: sessionID}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS saves (
			session_id TEXT NOT NULL,
			slot TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			global_steps INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (session_id, slot)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			level TEXT NOT NULL,
			event TEXT NOT NULL,
			msg TEXT,
			fields TEXT,
			session_id TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Put implements savefile.Store. An existing slot is overwritten.
func (s *Store) Put(ctx context.Context, slot string, h savefile.Header, rec walk.SaveRecord) error {
	data, err := savefile.Marshal(h, rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saves (session_id, slot, saved_at, global_steps, node_id, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, slot) DO UPDATE SET
			saved_at = excluded.saved_at,
			global_steps = excluded.global_steps,
			node_id = excluded.node_id,
			data = excluded.data`,
		s.sessionID, slot, h.SavedAt.UTC().Format(time.RFC3339Nano), h.GlobalSteps, h.NodeID, data)
	return err
}

// Get implements savefile.Store.
func (s *Store) Get(ctx context.Context, slot string) (savefile.Header, walk.SaveRecord, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM saves WHERE session_id = ? AND slot = ?`, s.sessionID, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return savefile.Header{}, walk.SaveRecord{}, savefile.ErrNotFound
	}
	if err != nil {
		return savefile.Header{}, walk.SaveRecord{}, err
	}
	return savefile.Unmarshal(data)
}

// Slots lists the saved slots of the session, newest first.
func (s *Store) Slots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slot FROM saves WHERE session_id = ? ORDER BY saved_at DESC, slot`, s.sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

// Append implements events.Store.
func (s *Store) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON []byte
	if fields != nil {
		b, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
		fieldsJSON = b
	}
	_, err := s.db.Exec(
		`INSERT INTO events (ts, level, event, msg, fields, session_id) VALUES (?, ?, ?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339Nano), level, event, nullString(msg), nullString(string(fieldsJSON)), nullString(sessionID))
	return err
}

// EventCount returns the number of stored events.
func (s *Store) EventCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
