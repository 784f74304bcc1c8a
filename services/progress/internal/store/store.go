// Package store persists progress records with merge-on-write semantics:
// every save unions its intervals into the stored set, so concurrent or
// repeated saves converge to the same record regardless of order.
package store

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/example/watch-progress/internal/watch"
)

var ErrNotFound = errors.New("store: progress not found")

// Result is the outcome of an UpsertMerge.
type Result struct {
	Record watch.Record
	// FirstCompletion is set when this call took the record to 100%.
	FirstCompletion bool
}

// ProgressStore defines persistence operations for watch progress.
type ProgressStore interface {
	// Get returns ErrNotFound when nothing was saved yet.
	Get(ctx context.Context, subjectID, contentID string) (watch.Record, error)
	// UpsertMerge creates the record on first use and otherwise merges the
	// incoming intervals, keeping the larger duration and last position.
	UpsertMerge(ctx context.Context, subjectID, contentID string, merged []watch.Interval, lastPosition, duration float64) (Result, error)
	Ping(ctx context.Context) error
	Close() error
}

// apply merges the incoming state into rec and stamps it.
func apply(rec *watch.Record, merged []watch.Interval, lastPosition, duration float64, now time.Time) bool {
	wasComplete := rec.Complete()
	rec.Absorb(merged, lastPosition, duration)
	rec.UpdatedAt = now
	return !wasComplete && rec.Complete()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
