// Package collector implements the delivery endpoint counterpart of the
// pipeline: an HTTP receiver that stores incoming event batches in sqlite
// and answers simple stats queries.
package collector

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-free sqlite driver

	"github.com/pagepulse/pagepulse/internal/sink"
)

// Database stores delivered batches.
type Database struct {
	db *sql.DB
}

// NewDatabase opens (or creates) the collector database.
func NewDatabase(path string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked" under concurrent posts.
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS batches(
	  id          INTEGER PRIMARY KEY,
	  session_id  TEXT    NOT NULL,
	  duration_ms INTEGER NOT NULL,
	  received_at INTEGER NOT NULL,
	  event_count INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS events(
	  id           INTEGER PRIMARY KEY,
	  batch_id     INTEGER NOT NULL REFERENCES batches(id),
	  session_id   TEXT    NOT NULL,
	  user_id      TEXT,
	  type         TEXT    NOT NULL,
	  ts           INTEGER NOT NULL,
	  url          TEXT,
	  path         TEXT,
	  title        TEXT,
	  data_json    TEXT    CHECK (data_json IS NULL OR json_valid(data_json)),
	  context_json TEXT    CHECK (context_json IS NULL OR json_valid(context_json))
	);
	CREATE INDEX IF NOT EXISTS idx_events_ts      ON events(ts);
	CREATE INDEX IF NOT EXISTS idx_events_type    ON events(type);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (d *Database) Close() error {
	return d.db.Close()
}

// InsertBatch validates and stores a delivered batch transactionally.
func (d *Database) InsertBatch(batch sink.Batch) error {
	if len(batch.Events) == 0 {
		return fmt.Errorf("batch has no events")
	}
	for i := range batch.Events {
		if err := batch.Events[i].Validate(); err != nil {
			return fmt.Errorf("invalid event: %w", err)
		}
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	res, err := tx.Exec(
		`INSERT INTO batches(session_id, duration_ms, received_at, event_count) VALUES(?,?,?,?)`,
		batch.Session.ID, batch.Session.DurationMs, time.Now().UnixMilli(), len(batch.Events),
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert batch row: %w", err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("batch row id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO events(
	  batch_id, session_id, user_id, type, ts, url, path, title, data_json, context_json
	) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range batch.Events {
		var dataJSON any
		if ev.Data != nil {
			b, err := json.Marshal(ev.Data)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("marshal event data: %w", err)
			}
			dataJSON = string(b)
		}
		ctxJSON, err := json.Marshal(ev.Context)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal event context: %w", err)
		}
		if _, err := stmt.Exec(
			batchID, ev.SessionID, ev.UserID, ev.Type, ev.Timestamp,
			ev.Page.URL, ev.Page.Path, ev.Page.Title, dataJSON, string(ctxJSON),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// TypeCount is one row of the stats summary.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// StatsByType returns event counts grouped by type, most frequent first.
func (d *Database) StatsByType() ([]TypeCount, error) {
	rows, err := d.db.Query(`SELECT type, COUNT(*) FROM events GROUP BY type ORDER BY COUNT(*) DESC, type`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// EventCount returns the total number of stored events.
func (d *Database) EventCount() (int64, error) {
	var n int64
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
