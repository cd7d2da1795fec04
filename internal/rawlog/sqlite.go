// Package rawlog archives raw platform payloads to SQLite before any
// normalization touches them, so unparsed or dropped events can be
// replayed and diagnosed after the fact.
package rawlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"
)

const schema = `CREATE TABLE IF NOT EXISTS raw_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  received_at TEXT NOT NULL,
  platform TEXT NOT NULL,
  event_type TEXT NOT NULL,
  payload_json TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS raw_events_platform_idx ON raw_events (platform, received_at);`

// Entry is one archived payload exactly as a platform delivered it.
type Entry struct {
	ID         int64
	ReceivedAt time.Time
	Platform   string
	EventType  string
	Payload    json.RawMessage
}

type Store struct {
	db *sql.DB
}

const defaultListLimit = 100

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=wal;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set WAL")
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set busy timeout")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping() error { return s.db.Ping() }

func (s *Store) String() string {
	return fmt.Sprintf("rawlog.Store{%p}", s.db)
}

// Write archives one payload. The payload is marshalled to JSON here so
// callers can pass whatever shape the platform handed them.
func (s *Store) Write(platform, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode payload")
	}
	const q = `INSERT INTO raw_events (received_at, platform, event_type, payload_json)
VALUES (?, ?, ?, ?);`
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.Exec(q, ts, platform, eventType, string(data))
	return errors.Wrap(err, "insert raw event")
}

// Count reports how many payloads have been archived, optionally for a
// single platform.
func (s *Store) Count(ctx context.Context, platform string) (int64, error) {
	var (
		n   int64
		err error
	)
	if platform == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_events;`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_events WHERE platform = ?;`, platform).Scan(&n)
	}
	return n, errors.Wrap(err, "count raw events")
}

// Recent returns the newest archived payloads, newest first.
func (s *Store) Recent(ctx context.Context, platform string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT id, received_at, platform, event_type, payload_json FROM raw_events`
	args := []any{}
	if platform != "" {
		query += ` WHERE platform = ?`
		args = append(args, platform)
	}
	query += ` ORDER BY id DESC LIMIT ?;`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list raw events")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			entry   Entry
			ts      string
			payload string
		)
		if err := rows.Scan(&entry.ID, &ts, &entry.Platform, &entry.EventType, &payload); err != nil {
			return nil, errors.Wrap(err, "scan raw event")
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.ReceivedAt = t
		}
		entry.Payload = json.RawMessage(payload)
		out = append(out, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate raw events")
	}
	return out, nil
}
