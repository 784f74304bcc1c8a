// Package service applies progress saves to the store and announces the
// outcome on the event bus. HTTP and JetStream entry points share it.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/platform/events"
	"github.com/example/watch-progress/internal/watch"
	"github.com/example/watch-progress/services/progress/internal/store"
)

type Service struct {
	store  store.ProgressStore
	events *events.Publisher
	log    *zap.Logger
}

// New wires a Service. pub may be nil when no event bus is configured.
func New(s store.ProgressStore, pub *events.Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, events: pub, log: log}
}

// Get returns the stored record, or a zeroed one when nothing was saved.
func (s *Service) Get(ctx context.Context, subjectID, contentID string) (watch.Record, error) {
	rec, err := s.store.Get(ctx, subjectID, contentID)
	if errors.Is(err, store.ErrNotFound) {
		return watch.NewRecord(subjectID, contentID), nil
	}
	if err != nil {
		return watch.Record{}, fmt.Errorf("get progress: %w", err)
	}
	return rec, nil
}

// Save merges the incoming state into the stored record.
func (s *Service) Save(ctx context.Context, subjectID, contentID string, merged []watch.Interval, lastPosition, duration float64) (watch.Record, error) {
	res, err := s.store.UpsertMerge(ctx, subjectID, contentID, merged, lastPosition, duration)
	if err != nil {
		return watch.Record{}, fmt.Errorf("save progress: %w", err)
	}
	rec := res.Record

	props := map[string]any{
		"content_id":                   rec.ContentID,
		"progress_percentage":          rec.ProgressPercentage,
		"total_unique_watched_seconds": rec.TotalUniqueWatchedSeconds,
		"last_known_position":          rec.LastKnownPosition,
	}
	s.events.Publish(events.SubjectProgressUpdated, "progress_updated", subjectID, props)
	if res.FirstCompletion {
		s.log.Info("content completed",
			zap.String("subject_id", subjectID),
			zap.String("content_id", contentID),
		)
		s.events.Publish(events.SubjectProgressCompleted, "progress_completed", subjectID, props)
	}
	return rec, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
