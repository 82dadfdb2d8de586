// Package postgres stores the event log and save slots in Postgres.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/StepwiseEngine/internal/config"
	"github.com/AaronLay10/StepwiseEngine/internal/savefile"
	"github.com/AaronLay10/StepwiseEngine/internal/walk"
)

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	SessionID string                 `json:"session_id"`
}

// Client manages the Postgres connection for one session.
type Client struct {
	db        *sql.DB
	sessionID string

	mu          sync.Mutex
	errorLogged bool
}

// New connects using the standard PG* environment variables.
func New(sessionID string) (*Client, error) {
	cs, err := ConnString()
	if err != nil {
		return nil, err
	}
	return Open(cs, sessionID)
}

// ConnString builds a lib/pq connection string from PG* variables. The
// password may also come from PGPASSWORD_FILE.
func ConnString() (string, error) {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "stepwise")
	dbname := getEnv("PGDATABASE", "stepwise")
	sslmode := getEnv("PGSSLMODE", "disable")
	password, err := config.ResolveSecret("PGPASSWORD")
	if err != nil {
		return "", err
	}

	if password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode), nil
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		host, port, user, dbname, sslmode), nil
}

// Open connects with an explicit connection string and creates the tables.
func Open(connStr, sessionID string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:        db,
		sessionID: sessionID,
	}
	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return client, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			session_id TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id);

		CREATE TABLE IF NOT EXISTS saves (
			session_id   TEXT NOT NULL,
			slot         TEXT NOT NULL,
			saved_at     TIMESTAMPTZ NOT NULL,
			global_steps INTEGER NOT NULL,
			node_id      TEXT NOT NULL,
			data         BYTEA NOT NULL,
			PRIMARY KEY (session_id, slot)
		);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event. It satisfies events.Store.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}
	if sessionID == "" {
		sessionID = c.sessionID
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, session_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, sessionID)
	return err
}

// Query returns the last N events of the session, newest first.
func (c *Client) Query(limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `
		SELECT event_id, ts, level, event, msg, fields, session_id
		FROM events
		WHERE session_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.SessionID); err != nil {
			return nil, err
		}
		if msg.Valid {
			e.Message = &msg.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Put implements savefile.Store.
func (c *Client) Put(ctx context.Context, slot string, h savefile.Header, rec walk.SaveRecord) error {
	data, err := savefile.Marshal(h, rec)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO saves (session_id, slot, saved_at, global_steps, node_id, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, slot) DO UPDATE SET
			saved_at = EXCLUDED.saved_at,
			global_steps = EXCLUDED.global_steps,
			node_id = EXCLUDED.node_id,
			data = EXCLUDED.data
	`
	_, err = c.db.ExecContext(ctx, query, c.sessionID, slot, h.SavedAt, h.GlobalSteps, h.NodeID, data)
	return err
}

// Get implements savefile.Store.
func (c *Client) Get(ctx context.Context, slot string) (savefile.Header, walk.SaveRecord, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM saves WHERE session_id = $1 AND slot = $2`, c.sessionID, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return savefile.Header{}, walk.SaveRecord{}, savefile.ErrNotFound
	}
	if err != nil {
		return savefile.Header{}, walk.SaveRecord{}, err
	}
	return savefile.Unmarshal(data)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// MarkErrorLogged marks that a store error has been logged once.
func (c *Client) MarkErrorLogged() {
	c.mu.Lock()
	c.errorLogged = true
	c.mu.Unlock()
}

// HasLoggedError returns true if a store error has been logged.
func (c *Client) HasLoggedError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorLogged
}
