// Package tracker turns player lifecycle events into watched segments and
// enforces sequential viewing.
//
// A Tracker is owned by a single goroutine; it holds no locks. Every call to
// Handle runs to completion and returns the raw segments it closed.
package tracker

import (
	"math"

	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/notice"
	"github.com/example/watch-progress/internal/player"
	"github.com/example/watch-progress/internal/watch"
)

// DefaultForwardTolerance is how far past the contiguous position a viewer
// may seek without being pulled back.
const DefaultForwardTolerance = 2.0

type State int

const (
	Idle State = iota
	Watching
)

func (s State) String() string {
	if s == Watching {
		return "watching"
	}
	return "idle"
}

// Snapshot is a read-only view of the tracker state.
type Snapshot struct {
	State                  State
	SegmentStart           float64 // valid only while Watching
	LastObservedTime       float64
	LastContinuousPosition float64
	IsPlaying              bool
	Duration               float64 // 0 when unknown
}

type Options struct {
	// ForwardTolerance <= 0 selects DefaultForwardTolerance.
	ForwardTolerance float64
	Commander        player.Commander
	Notifier         notice.Notifier
	Logger           *zap.Logger

	// Strict also holds Play jumps, time ticks and pause positions to the
	// ceiling, and closes the segment on a backward tick. Off by default:
	// only SeekRequested is checked against the ceiling.
	Strict bool
}

type Tracker struct {
	tolerance float64
	strict    bool
	cmd       player.Commander
	notify    notice.Notifier
	log       *zap.Logger

	state          State
	segmentStart   float64
	lastObserved   float64
	lastContinuous float64
	duration       float64
}

func New(opts Options) *Tracker {
	t := &Tracker{
		tolerance: opts.ForwardTolerance,
		strict:    opts.Strict,
		cmd:       opts.Commander,
		notify:    opts.Notifier,
		log:       opts.Logger,
	}
	if t.tolerance <= 0 || math.IsNaN(t.tolerance) || math.IsInf(t.tolerance, 0) {
		t.tolerance = DefaultForwardTolerance
	}
	if t.notify == nil {
		t.notify = notice.Discard
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	return t
}

// Seed resets the contiguous position, e.g. when resuming from a persisted
// record. Call it while idle, before the first Play.
func (t *Tracker) Seed(lastContinuous float64) {
	if !finite(lastContinuous) || lastContinuous < 0 {
		lastContinuous = 0
	}
	t.lastContinuous = lastContinuous
	if t.state == Idle {
		t.lastObserved = lastContinuous
	}
}

func (t *Tracker) Tolerance() float64 { return t.tolerance }

// Ceiling is the furthest position a seek may target.
func (t *Tracker) Ceiling() float64 {
	return t.lastContinuous + t.tolerance
}

func (t *Tracker) State() Snapshot {
	return Snapshot{
		State:                  t.state,
		SegmentStart:           t.segmentStart,
		LastObservedTime:       t.lastObserved,
		LastContinuousPosition: t.lastContinuous,
		IsPlaying:              t.state == Watching,
		Duration:               t.duration,
	}
}

// Active returns the open segment, if it has positive length.
func (t *Tracker) Active() (watch.Interval, bool) {
	if t.state != Watching {
		return watch.Interval{}, false
	}
	iv := watch.Interval{Start: t.segmentStart, End: t.lastObserved}
	return iv, iv.Valid()
}

// Teardown closes the open segment as a pause at the last observed time.
func (t *Tracker) Teardown() []watch.Interval {
	return t.Handle(player.Pause(t.lastObserved))
}

func (t *Tracker) Handle(ev player.Event) []watch.Interval {
	if !finite(ev.At) {
		return nil
	}
	switch ev.Kind {
	case player.KindPlay:
		return t.onPlay(ev.At)
	case player.KindPause:
		return t.onPause(ev.At)
	case player.KindSeekRequested:
		return t.onSeek(ev.At)
	case player.KindBufferingStarted:
		return t.closeIdle(t.lastObserved)
	case player.KindEnded:
		end := t.lastObserved
		if t.duration > 0 {
			end = math.Min(end, t.duration)
		}
		return t.closeIdle(end)
	case player.KindTimeObserved:
		return t.onTime(ev.At)
	case player.KindDurationKnown:
		if ev.At > 0 {
			t.duration = ev.At
		}
	}
	return nil
}

func (t *Tracker) onPlay(at float64) []watch.Interval {
	if t.strict && at > t.Ceiling() {
		return t.reject(at, true)
	}
	var out []watch.Interval
	if t.state == Watching {
		out = t.close(t.lastObserved)
	}
	t.start(at)
	return out
}

func (t *Tracker) onPause(at float64) []watch.Interval {
	if t.state != Watching {
		t.lastObserved = at
		return nil
	}
	if t.strict {
		at = math.Min(at, t.Ceiling())
	}
	return t.closeIdle(at)
}

func (t *Tracker) onSeek(target float64) []watch.Interval {
	if target > t.Ceiling() {
		return t.reject(target, t.state == Watching)
	}
	if t.state != Watching {
		t.lastObserved = target
		return nil
	}
	out := t.close(t.lastObserved)
	t.start(target)
	return out
}

// onTime never closes a segment unless the tracker is strict.
func (t *Tracker) onTime(at float64) []watch.Interval {
	if t.state == Watching && t.strict {
		return t.onTimeStrict(at)
	}
	t.lastObserved = at
	if t.state == Watching {
		t.advance(at)
	}
	return nil
}

func (t *Tracker) onTimeStrict(at float64) []watch.Interval {
	if at > t.Ceiling() {
		return t.reject(at, true)
	}
	if at < t.lastObserved {
		// Unreported backward seek: keep what was watched, restart here.
		out := t.close(t.lastObserved)
		t.start(at)
		return out
	}
	t.lastObserved = at
	t.advance(at)
	return nil
}

// reject pulls the player back to the contiguous position.
func (t *Tracker) reject(target float64, keepPlaying bool) []watch.Interval {
	var out []watch.Interval
	if t.state == Watching {
		end := t.lastObserved
		if t.strict {
			end = math.Min(end, t.Ceiling())
		}
		out = t.close(end)
	}
	t.state = Idle
	resume := t.lastContinuous
	t.lastObserved = resume
	if keepPlaying {
		t.start(resume)
	}

	t.log.Info("forward seek rejected",
		zap.Float64("target", target),
		zap.Float64("resume_at", resume),
	)
	if t.cmd != nil {
		t.cmd.SeekTo(resume)
	}
	t.notify.Notify(notice.Notice{
		Kind:    notice.SkipRejected,
		Message: "cannot skip forward; resume from " + watch.FormatTime(resume),
	})
	return out
}

func (t *Tracker) start(at float64) {
	t.state = Watching
	t.segmentStart = at
	t.lastObserved = at
}

// close emits [segmentStart, end] without changing state.
func (t *Tracker) close(end float64) []watch.Interval {
	iv := watch.Interval{Start: t.segmentStart, End: end}
	if !iv.Valid() {
		return nil
	}
	t.advance(end)
	return []watch.Interval{iv}
}

func (t *Tracker) closeIdle(end float64) []watch.Interval {
	if t.state != Watching {
		return nil
	}
	out := t.close(end)
	t.state = Idle
	t.lastObserved = end
	return out
}

// advance moves the contiguous position forward when pos is reachable.
func (t *Tracker) advance(pos float64) {
	if pos > t.lastContinuous && pos <= t.Ceiling() {
		t.lastContinuous = pos
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
