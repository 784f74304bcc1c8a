package syncclient

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/example/watch-progress/internal/notice"
	"github.com/example/watch-progress/internal/player"
	"github.com/example/watch-progress/internal/tracker"
)

// echoPlayer reports every SeekTo back to the session, as real players do.
type echoPlayer struct {
	mu      sync.Mutex
	session *Session
	seeks   []float64
}

func (p *echoPlayer) SeekTo(s float64) {
	p.mu.Lock()
	p.seeks = append(p.seeks, s)
	sess := p.session
	p.mu.Unlock()
	if sess != nil {
		sess.Handle(player.SeekRequested(s))
	}
}
func (p *echoPlayer) Play()  {}
func (p *echoPlayer) Pause() {}

func (p *echoPlayer) seekLog() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.seeks...)
}

func newTestSession(t *testing.T, api *fakeProgressAPI) (*Session, *echoPlayer, *notice.Recorder) {
	t.Helper()
	c, rec := newTestClient(t, api, Options{Debounce: time.Hour})
	p := &echoPlayer{}
	s := NewSession(SessionOptions{Client: c, Player: p, Notifier: rec})
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
	return s, p, rec
}

func TestSessionResumesFromStoredRecord(t *testing.T) {
	api := newFakeProgressAPI()
	api.rec.Absorb(ivs(0, 30, 50, 60), 30, 100)
	s, p, rec := newTestSession(t, api)

	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !reflect.DeepEqual(p.seekLog(), []float64{30}) {
		t.Fatalf("expected resume seek to 30, got %v", p.seekLog())
	}
	if rec.Count(notice.Resumed) != 1 {
		t.Fatalf("expected resumed notice, got %v", rec.Notices())
	}
	st := s.Tracker()
	if st.LastContinuousPosition != 30 || st.Duration != 100 {
		t.Fatalf("expected seeded tracker, got %+v", st)
	}
}

func TestSessionRejectsSkipAndPersists(t *testing.T) {
	api := newFakeProgressAPI()
	api.rec.Absorb(ivs(0, 30), 30, 100)
	s, p, rec := newTestSession(t, api)
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	s.Handle(player.Play(30))
	for at := 31.0; at <= 35; at++ {
		s.Handle(player.TimeObserved(at))
	}
	s.Handle(player.SeekRequested(90))

	if got := p.seekLog(); !reflect.DeepEqual(got, []float64{30, 35}) {
		t.Fatalf("expected resume then redirect to 35, got %v", got)
	}
	if rec.Count(notice.SkipRejected) != 1 {
		t.Fatalf("expected one skip notice, got %v", rec.Notices())
	}
	if st := s.Tracker(); st.State != tracker.Watching || st.LastContinuousPosition != 35 {
		t.Fatalf("expected watching with continuous 35, got %+v", st)
	}

	for at := 36.0; at <= 40; at++ {
		s.Handle(player.TimeObserved(at))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Close(ctx)

	api.mu.Lock()
	merged := api.rec.MergedIntervals
	pct := api.rec.ProgressPercentage
	api.mu.Unlock()
	if !reflect.DeepEqual(merged, ivs(0, 40)) {
		t.Fatalf("expected stored [0,40], got %v", merged)
	}
	if pct != 40 {
		t.Fatalf("expected 40%%, got %v", pct)
	}
}

func TestSessionHandleSchedulesOnTicks(t *testing.T) {
	api := newFakeProgressAPI()
	s, _, _ := newTestSession(t, api)

	s.Handle(player.Play(0))
	s.Handle(player.TimeObserved(1))
	s.Handle(player.TimeObserved(2))
	if err := s.client.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !reflect.DeepEqual(api.body(0).MergedIntervals, ivs(0, 2)) {
		t.Fatalf("expected provisional [0,2], got %v", api.body(0).MergedIntervals)
	}
}
