package store

import (
	"context"
	"sync"

	"github.com/example/watch-progress/internal/watch"
)

type key struct {
	subject string
	content string
}

// InMemoryProgressStore is a development-only in-memory implementation.
type InMemoryProgressStore struct {
	mu      sync.Mutex
	records map[key]watch.Record
}

func NewInMemoryProgressStore() *InMemoryProgressStore {
	return &InMemoryProgressStore{records: make(map[key]watch.Record)}
}

func (s *InMemoryProgressStore) Get(_ context.Context, subjectID, contentID string) (watch.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key{subjectID, contentID}]
	if !ok {
		return watch.Record{}, ErrNotFound
	}
	return clone(rec), nil
}

func (s *InMemoryProgressStore) UpsertMerge(_ context.Context, subjectID, contentID string, merged []watch.Interval, lastPosition, duration float64) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{subjectID, contentID}
	rec, ok := s.records[k]
	if !ok {
		rec = watch.NewRecord(subjectID, contentID)
	}
	first := apply(&rec, merged, sanitize(lastPosition), sanitize(duration), now())
	s.records[k] = rec
	return Result{Record: clone(rec), FirstCompletion: first}, nil
}

func (s *InMemoryProgressStore) Ping(context.Context) error { return nil }

func (s *InMemoryProgressStore) Close() error { return nil }

func clone(rec watch.Record) watch.Record {
	rec.MergedIntervals = append([]watch.Interval{}, rec.MergedIntervals...)
	return rec
}
