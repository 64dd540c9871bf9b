// Package store persists device-local state in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tessro/tandem/internal/core"
)

// FileName is the database file created inside the data directory.
const FileName = "tandem.db"

// DefaultHistoryLimit bounds the play history table.
const DefaultHistoryLimit = 500

// DB wraps the local SQLite database.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database in dir.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps the pragmas applied to every statement.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	s := &DB{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS _meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		);
	`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS play_history (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id     TEXT NOT NULL,
			artist_id    TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			artist_name  TEXT NOT NULL DEFAULT '',
			duration_ms  INTEGER NOT NULL DEFAULT 0,
			context_id   TEXT NOT NULL DEFAULT '',
			context_type TEXT NOT NULL DEFAULT '',
			context_name TEXT NOT NULL DEFAULT '',
			device_id    TEXT NOT NULL DEFAULT '',
			played_at    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_play_history_played_at ON play_history(played_at);
	`); err != nil {
		return fmt.Errorf("create history table: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *DB) Path() string {
	return s.path
}

// Close closes the database.
func (s *DB) Close() error {
	return s.db.Close()
}

// Meta returns the value stored under key. ok is false when the key is unset.
func (s *DB) Meta(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM _meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read meta %q: %w", key, err)
	}
	return value, true, nil
}

// SetMeta stores value under key, replacing any previous value.
func (s *DB) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO _meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write meta %q: %w", key, err)
	}
	return nil
}

// RecordPlay appends a history entry and trims the table to
// DefaultHistoryLimit rows.
func (s *DB) RecordPlay(ctx context.Context, e core.HistoryEntry) error {
	if e.PlayedAt.IsZero() {
		e.PlayedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO play_history
			(track_id, artist_id, title, artist_name, duration_ms,
			 context_id, context_type, context_name, device_id, played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Track.ID, e.Track.ArtistID, e.Track.Title, e.Track.ArtistName, e.Track.Duration.Milliseconds(),
		e.Context.ID, string(e.Context.Type), e.Context.Name, e.DeviceID, e.PlayedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record play: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM play_history WHERE id NOT IN (
			SELECT id FROM play_history ORDER BY played_at DESC, id DESC LIMIT ?
		)`, DefaultHistoryLimit)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

// Recent returns up to limit history entries, newest first.
func (s *DB) Recent(ctx context.Context, limit int) ([]core.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT track_id, artist_id, title, artist_name, duration_ms,
		       context_id, context_type, context_name, device_id, played_at
		FROM play_history
		ORDER BY played_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []core.HistoryEntry
	for rows.Next() {
		var (
			e           core.HistoryEntry
			durationMs  int64
			contextType string
			playedAt    int64
		)
		if err := rows.Scan(&e.Track.ID, &e.Track.ArtistID, &e.Track.Title, &e.Track.ArtistName, &durationMs,
			&e.Context.ID, &contextType, &e.Context.Name, &e.DeviceID, &playedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Track.Duration = time.Duration(durationMs) * time.Millisecond
		e.Context.Type = core.ContextType(contextType)
		e.PlayedAt = time.UnixMilli(playedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearHistory deletes every history entry.
func (s *DB) ClearHistory(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM play_history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
