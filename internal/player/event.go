// Package player defines the vendor-neutral player event union consumed by
// the segment tracker, and adapters that translate vendor callbacks into it.
package player

import (
	"fmt"
)

type Kind int

const (
	KindPlay Kind = iota + 1
	KindPause
	KindSeekRequested
	KindBufferingStarted
	KindEnded
	KindTimeObserved
	KindDurationKnown
)

func (k Kind) String() string {
	switch k {
	case KindPlay:
		return "play"
	case KindPause:
		return "pause"
	case KindSeekRequested:
		return "seek_requested"
	case KindBufferingStarted:
		return "buffering_started"
	case KindEnded:
		return "ended"
	case KindTimeObserved:
		return "time_observed"
	case KindDurationKnown:
		return "duration_known"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is a single player lifecycle event. At is a media position in
// seconds, except for KindSeekRequested where it is the seek target and
// KindDurationKnown where it is the content duration.
type Event struct {
	Kind Kind
	At   float64
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%.3f", e.Kind, e.At)
}

func Play(at float64) Event              { return Event{Kind: KindPlay, At: at} }
func Pause(at float64) Event             { return Event{Kind: KindPause, At: at} }
func SeekRequested(target float64) Event { return Event{Kind: KindSeekRequested, At: target} }
func BufferingStarted(at float64) Event  { return Event{Kind: KindBufferingStarted, At: at} }
func Ended(at float64) Event             { return Event{Kind: KindEnded, At: at} }
func TimeObserved(at float64) Event      { return Event{Kind: KindTimeObserved, At: at} }
func DurationKnown(seconds float64) Event {
	return Event{Kind: KindDurationKnown, At: seconds}
}

// Commander is the command surface of the external player widget.
type Commander interface {
	SeekTo(seconds float64)
	Play()
	Pause()
}
