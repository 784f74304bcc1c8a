package syncclient

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/notice"
	"github.com/example/watch-progress/internal/player"
	"github.com/example/watch-progress/internal/tracker"
	"github.com/example/watch-progress/internal/watch"
)

type SessionOptions struct {
	Client *Client
	// Player receives seek/play/pause commands. Commands are issued after
	// the session lock is released, so the player may call Handle back
	// synchronously.
	Player           player.Commander
	Notifier         notice.Notifier
	Logger           *zap.Logger
	ForwardTolerance float64
	// StrictSequential enables tracker.Options.Strict.
	StrictSequential bool
}

// Session feeds player events through a tracker and schedules saves.
// Handle may be called from any goroutine.
type Session struct {
	client *Client
	player player.Commander
	notify notice.Notifier
	log    *zap.Logger

	mu       sync.Mutex
	tracker  *tracker.Tracker
	merged   []watch.Interval
	deferred []func(player.Commander)
}

func NewSession(opts SessionOptions) *Session {
	s := &Session{
		client: opts.Client,
		player: opts.Player,
		notify: opts.Notifier,
		log:    opts.Logger,
		merged: []watch.Interval{},
	}
	if s.notify == nil {
		s.notify = notice.Discard
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.tracker = tracker.New(tracker.Options{
		ForwardTolerance: opts.ForwardTolerance,
		Strict:           opts.StrictSequential,
		Commander:        deferredCommander{s},
		Notifier:         s.notify,
		Logger:           s.log,
	})
	return s
}

// Start loads the stored record, restores the sequential ceiling from its
// contiguous prefix and moves the player to the resume position.
func (s *Session) Start(ctx context.Context) (watch.Record, error) {
	rec, err := s.client.Load(ctx)
	if err != nil {
		return watch.Record{}, fmt.Errorf("load progress: %w", err)
	}

	s.mu.Lock()
	s.merged = watch.Union(s.merged, rec.MergedIntervals)
	prefix := watch.ContiguousPrefix(s.merged, s.tracker.Tolerance())
	s.tracker.Seed(prefix)
	if rec.ContentDuration > 0 {
		s.tracker.Handle(player.DurationKnown(rec.ContentDuration))
	}
	resume := math.Min(rec.LastKnownPosition, s.tracker.Ceiling())
	s.mu.Unlock()

	if resume > 0 {
		if s.player != nil {
			s.player.SeekTo(resume)
		}
		s.notify.Notify(notice.Notice{
			Kind:    notice.Resumed,
			Message: "resume from " + watch.FormatTime(resume),
		})
	}
	s.log.Info("session started",
		zap.Float64("contiguous", prefix),
		zap.Float64("resume_at", resume),
		zap.Float64("percentage", rec.ProgressPercentage),
	)
	return rec, nil
}

// Handle processes one player event and returns the segments it closed.
func (s *Session) Handle(ev player.Event) []watch.Interval {
	s.mu.Lock()
	segs := s.tracker.Handle(ev)
	if schedulesSave(ev.Kind) || len(segs) > 0 {
		s.scheduleLocked(segs)
	}
	cmds := s.deferred
	s.deferred = nil
	s.mu.Unlock()

	s.runCommands(cmds)
	return segs
}

// Close tears the tracker down and flushes best-effort.
func (s *Session) Close(ctx context.Context) []watch.Interval {
	s.mu.Lock()
	segs := s.tracker.Teardown()
	s.scheduleLocked(segs)
	cmds := s.deferred
	s.deferred = nil
	s.mu.Unlock()

	s.runCommands(cmds)
	s.client.Close(ctx)
	return segs
}

func (s *Session) Tracker() tracker.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.State()
}

func (s *Session) Local() Local {
	return s.client.Local()
}

func (s *Session) scheduleLocked(segs []watch.Interval) {
	s.merged = watch.Union(s.merged, segs)
	st := s.tracker.State()
	req := PersistRequest{
		Merged:       s.merged,
		Segments:     segs,
		LastPosition: st.LastObservedTime,
		Duration:     st.Duration,
	}
	if active, ok := s.tracker.Active(); ok {
		req.Active = &active
	}
	s.client.SchedulePersist(req)
}

func (s *Session) runCommands(cmds []func(player.Commander)) {
	if s.player == nil {
		return
	}
	for _, cmd := range cmds {
		cmd(s.player)
	}
}

func schedulesSave(k player.Kind) bool {
	switch k {
	case player.KindPause, player.KindSeekRequested, player.KindEnded,
		player.KindBufferingStarted, player.KindTimeObserved:
		return true
	}
	return false
}

// deferredCommander queues tracker commands until the session unlocks.
type deferredCommander struct{ s *Session }

func (d deferredCommander) SeekTo(seconds float64) {
	d.s.deferred = append(d.s.deferred, func(p player.Commander) { p.SeekTo(seconds) })
}

func (d deferredCommander) Play() {
	d.s.deferred = append(d.s.deferred, func(p player.Commander) { p.Play() })
}

func (d deferredCommander) Pause() {
	d.s.deferred = append(d.s.deferred, func(p player.Commander) { p.Pause() })
}
