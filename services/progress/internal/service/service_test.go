package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/example/watch-progress/internal/platform/events"
	"github.com/example/watch-progress/internal/watch"
	"github.com/example/watch-progress/services/progress/internal/store"
)

type recordingJS struct {
	subjects []string
	names    []string
}

func (r *recordingJS) PublishAsync(subj string, data []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	var ev events.Event
	_ = json.Unmarshal(data, &ev)
	r.subjects = append(r.subjects, subj)
	r.names = append(r.names, ev.EventName)
	return nil, nil
}

type failingStore struct{ store.ProgressStore }

func (failingStore) Get(context.Context, string, string) (watch.Record, error) {
	return watch.Record{}, errors.New("db down")
}

func TestGetReturnsZeroedDefault(t *testing.T) {
	svc := New(store.NewInMemoryProgressStore(), nil, nil)
	rec, err := svc.Get(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.SubjectID != "u1" || rec.ContentID != "c1" || rec.MergedIntervals == nil || rec.ProgressPercentage != 0 {
		t.Fatalf("expected zeroed record, got %+v", rec)
	}
}

func TestGetPropagatesStoreErrors(t *testing.T) {
	svc := New(failingStore{}, nil, nil)
	if _, err := svc.Get(context.Background(), "u1", "c1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSavePublishesUpdatesAndFirstCompletion(t *testing.T) {
	js := &recordingJS{}
	svc := New(store.NewInMemoryProgressStore(), events.New(js, nil), nil)
	ctx := context.Background()

	if _, err := svc.Save(ctx, "u1", "c1", []watch.Interval{{Start: 0, End: 60}}, 60, 60); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.Save(ctx, "u1", "c1", []watch.Interval{{Start: 0, End: 60}}, 60, 60); err != nil {
		t.Fatalf("save again: %v", err)
	}

	want := []string{
		events.SubjectProgressUpdated,
		events.SubjectProgressCompleted,
		events.SubjectProgressUpdated,
	}
	if len(js.subjects) != len(want) {
		t.Fatalf("expected %v, got %v", want, js.subjects)
	}
	for i := range want {
		if js.subjects[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, js.subjects)
		}
	}
	if js.names[1] != "progress_completed" {
		t.Fatalf("expected completion event name, got %q", js.names[1])
	}
}
