package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/example/watch-progress/internal/watch"
)

// PgxPool is the subset of *pgxpool.Pool the Postgres store uses.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresProgressStore is the production Postgres-backed implementation.
// Writers serialise per row with SELECT ... FOR UPDATE.
type PostgresProgressStore struct {
	db PgxPool
}

func NewPostgresProgressStore(db PgxPool) *PostgresProgressStore {
	return &PostgresProgressStore{db: db}
}

const (
	pgClaimRow = `INSERT INTO watch_progress (subject_id, content_id) VALUES ($1, $2)
ON CONFLICT (subject_id, content_id) DO NOTHING`

	pgLockRow = `SELECT merged_intervals, last_known_position, content_duration, updated_at
FROM watch_progress WHERE subject_id = $1 AND content_id = $2 FOR UPDATE`

	pgUpdateRow = `UPDATE watch_progress SET
  merged_intervals             = $3,
  total_unique_watched_seconds = $4,
  last_known_position          = $5,
  progress_percentage          = $6,
  content_duration             = $7,
  updated_at                   = $8
WHERE subject_id = $1 AND content_id = $2`

	pgSelectRow = `SELECT merged_intervals, total_unique_watched_seconds, last_known_position,
  progress_percentage, content_duration, updated_at
FROM watch_progress WHERE subject_id = $1 AND content_id = $2`
)

func (s *PostgresProgressStore) Get(ctx context.Context, subjectID, contentID string) (watch.Record, error) {
	rec := watch.NewRecord(subjectID, contentID)
	var raw []byte
	err := s.db.QueryRow(ctx, pgSelectRow, subjectID, contentID).Scan(
		&raw, &rec.TotalUniqueWatchedSeconds, &rec.LastKnownPosition,
		&rec.ProgressPercentage, &rec.ContentDuration, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return watch.Record{}, ErrNotFound
		}
		return watch.Record{}, fmt.Errorf("select progress: %w", err)
	}
	if err := decodeIntervals(raw, &rec); err != nil {
		return watch.Record{}, err
	}
	return rec, nil
}

func (s *PostgresProgressStore) UpsertMerge(ctx context.Context, subjectID, contentID string, merged []watch.Interval, lastPosition, duration float64) (Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, pgClaimRow, subjectID, contentID); err != nil {
		return Result{}, fmt.Errorf("claim progress row: %w", err)
	}

	rec := watch.NewRecord(subjectID, contentID)
	var raw []byte
	if err := tx.QueryRow(ctx, pgLockRow, subjectID, contentID).Scan(
		&raw, &rec.LastKnownPosition, &rec.ContentDuration, &rec.UpdatedAt,
	); err != nil {
		return Result{}, fmt.Errorf("lock progress row: %w", err)
	}
	if err := decodeIntervals(raw, &rec); err != nil {
		return Result{}, err
	}
	rec.Recompute()

	first := apply(&rec, merged, sanitize(lastPosition), sanitize(duration), now())
	enc, err := json.Marshal(rec.MergedIntervals)
	if err != nil {
		return Result{}, fmt.Errorf("encode intervals: %w", err)
	}
	if _, err := tx.Exec(ctx, pgUpdateRow,
		subjectID, contentID, string(enc), rec.TotalUniqueWatchedSeconds,
		rec.LastKnownPosition, rec.ProgressPercentage, rec.ContentDuration, rec.UpdatedAt,
	); err != nil {
		return Result{}, fmt.Errorf("update progress: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return Result{Record: rec, FirstCompletion: first}, nil
}

func (s *PostgresProgressStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresProgressStore) Close() error {
	if c, ok := s.db.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

func decodeIntervals(raw []byte, rec *watch.Record) error {
	if len(raw) == 0 {
		rec.MergedIntervals = []watch.Interval{}
		return nil
	}
	if err := json.Unmarshal(raw, &rec.MergedIntervals); err != nil {
		return fmt.Errorf("decode intervals: %w", err)
	}
	if rec.MergedIntervals == nil {
		rec.MergedIntervals = []watch.Interval{}
	}
	return nil
}
