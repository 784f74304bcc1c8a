package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/watch-progress/internal/watch"
)

// SQLiteProgressStore keeps progress in a single-file database. The pool is
// capped at one connection, so transactions are serialised.
type SQLiteProgressStore struct {
	db *sql.DB
}

type SQLiteOptions struct {
	BusyTimeout time.Duration
	Synchronous string
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS watch_progress (
  subject_id                   TEXT NOT NULL,
  content_id                   TEXT NOT NULL,
  merged_intervals             TEXT NOT NULL DEFAULT '[]',
  total_unique_watched_seconds REAL NOT NULL DEFAULT 0,
  last_known_position          REAL NOT NULL DEFAULT 0,
  progress_percentage          REAL NOT NULL DEFAULT 0,
  content_duration             REAL NOT NULL DEFAULT 0,
  updated_at                   TEXT NOT NULL,
  PRIMARY KEY (subject_id, content_id)
)`

func OpenSQLite(path string, opts SQLiteOptions) (*SQLiteProgressStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	synchronous := opts.Synchronous
	if synchronous == "" {
		synchronous = "NORMAL"
	}
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA synchronous=%s", synchronous),
		fmt.Sprintf("PRAGMA busy_timeout=%d", int(busy/time.Millisecond)),
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteProgressStore{db: db}, nil
}

func (s *SQLiteProgressStore) Get(ctx context.Context, subjectID, contentID string) (watch.Record, error) {
	rec := watch.NewRecord(subjectID, contentID)
	var raw, updated string
	err := s.db.QueryRowContext(ctx, `SELECT merged_intervals, total_unique_watched_seconds, last_known_position,
  progress_percentage, content_duration, updated_at
FROM watch_progress WHERE subject_id = ? AND content_id = ?`, subjectID, contentID).Scan(
		&raw, &rec.TotalUniqueWatchedSeconds, &rec.LastKnownPosition,
		&rec.ProgressPercentage, &rec.ContentDuration, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return watch.Record{}, ErrNotFound
		}
		return watch.Record{}, fmt.Errorf("select progress: %w", err)
	}
	if err := decodeIntervals([]byte(raw), &rec); err != nil {
		return watch.Record{}, err
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return watch.Record{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return rec, nil
}

func (s *SQLiteProgressStore) UpsertMerge(ctx context.Context, subjectID, contentID string, merged []watch.Interval, lastPosition, duration float64) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec := watch.NewRecord(subjectID, contentID)
	var raw string
	err = tx.QueryRowContext(ctx, `SELECT merged_intervals, last_known_position, content_duration
FROM watch_progress WHERE subject_id = ? AND content_id = ?`, subjectID, contentID).Scan(
		&raw, &rec.LastKnownPosition, &rec.ContentDuration,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Result{}, fmt.Errorf("select progress: %w", err)
	default:
		if err := decodeIntervals([]byte(raw), &rec); err != nil {
			return Result{}, err
		}
		rec.Recompute()
	}

	first := apply(&rec, merged, sanitize(lastPosition), sanitize(duration), now())
	enc, err := json.Marshal(rec.MergedIntervals)
	if err != nil {
		return Result{}, fmt.Errorf("encode intervals: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO watch_progress (
  subject_id, content_id, merged_intervals, total_unique_watched_seconds,
  last_known_position, progress_percentage, content_duration, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (subject_id, content_id) DO UPDATE SET
  merged_intervals             = excluded.merged_intervals,
  total_unique_watched_seconds = excluded.total_unique_watched_seconds,
  last_known_position          = excluded.last_known_position,
  progress_percentage          = excluded.progress_percentage,
  content_duration             = excluded.content_duration,
  updated_at                   = excluded.updated_at`,
		subjectID, contentID, string(enc), rec.TotalUniqueWatchedSeconds,
		rec.LastKnownPosition, rec.ProgressPercentage, rec.ContentDuration,
		rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Result{}, fmt.Errorf("upsert progress: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	return Result{Record: rec, FirstCompletion: first}, nil
}

func (s *SQLiteProgressStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteProgressStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
