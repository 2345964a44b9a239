// Package history keeps a small sqlite journal of device events
// (captures, import runs, interval runs) so operators can reconstruct
// what the camera did overnight.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/Mojo24x7/canon-eos-studio-remote/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	ts      INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	detail  TEXT NOT NULL DEFAULT '',
	ok      INTEGER NOT NULL,
	error   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS events_ts ON events(ts);
`

// Log is the event journal. A nil *Log is valid and records nothing.
type Log struct {
	db *sql.DB
}

// Open opens (and initializes) the journal database at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// One writer at a time is plenty; avoids SQLITE_BUSY under
	// concurrent job finishes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history db: %w", err)
	}
	return &Log{db: db}, nil
}

// Record appends one event. Journal failures are logged and swallowed;
// history must never break a device operation.
func (l *Log) Record(kind, detail string, ok bool, errText string) {
	if l == nil || l.db == nil {
		return
	}
	okInt := 0
	if ok {
		okInt = 1
	}
	_, err := l.db.Exec(
		"INSERT INTO events (ts, kind, detail, ok, error) VALUES (?, ?, ?, ?, ?)",
		time.Now().Unix(), kind, detail, okInt, errText,
	)
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("Failed to record history event")
	}
}

// Recent returns the newest events, newest first.
func (l *Log) Recent(limit int) ([]models.HistoryEvent, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.Query(
		"SELECT id, ts, kind, detail, ok, error FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.HistoryEvent
	for rows.Next() {
		var ev models.HistoryEvent
		var ts int64
		var okInt int
		if err := rows.Scan(&ev.ID, &ts, &ev.Kind, &ev.Detail, &okInt, &ev.Error); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(ts, 0)
		ev.OK = okInt == 1
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the journal database.
func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
