package player

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownEvent is returned for callbacks an adapter does not know.
	ErrUnknownEvent = errors.New("player: unknown event")
	// ErrIgnored is returned for callbacks that carry no tracking meaning.
	ErrIgnored = errors.New("player: event ignored")
)

const (
	VendorHTML5       = "html5"
	VendorReactPlayer = "react-player"
	VendorYouTube     = "youtube"
)

// Callback is a raw vendor callback. Time is the position or duration the
// callback reports; State is only meaningful for state-code players.
type Callback struct {
	Name  string  `json:"name"`
	Time  float64 `json:"time"`
	State int     `json:"state,omitempty"`
}

type Adapter interface {
	Translate(cb Callback) (Event, error)
}

// NewAdapter returns a fresh adapter for vendor. Adapters may keep state,
// so use one per viewing session.
func NewAdapter(vendor string) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(vendor)) {
	case VendorHTML5, "video", "":
		return HTML5{}, nil
	case VendorReactPlayer:
		return ReactPlayer{}, nil
	case VendorYouTube:
		return &YouTube{}, nil
	}
	return nil, fmt.Errorf("%w: vendor %q", ErrUnknownEvent, vendor)
}

// HTML5 translates media element events (currentTime in Time).
type HTML5 struct{}

func (HTML5) Translate(cb Callback) (Event, error) {
	switch cb.Name {
	case "play", "playing":
		return Play(cb.Time), nil
	case "pause":
		return Pause(cb.Time), nil
	case "seeking":
		return SeekRequested(cb.Time), nil
	case "waiting", "stalled":
		return BufferingStarted(cb.Time), nil
	case "ended":
		return Ended(cb.Time), nil
	case "timeupdate":
		return TimeObserved(cb.Time), nil
	case "durationchange", "loadedmetadata":
		return DurationKnown(cb.Time), nil
	case "seeked", "canplay", "loadeddata", "volumechange", "ratechange":
		return Event{}, ErrIgnored
	}
	return Event{}, fmt.Errorf("%w: html5 %q", ErrUnknownEvent, cb.Name)
}

// ReactPlayer translates the wrapper component's callback props.
type ReactPlayer struct{}

func (ReactPlayer) Translate(cb Callback) (Event, error) {
	switch cb.Name {
	case "onPlay", "onStart":
		return Play(cb.Time), nil
	case "onPause":
		return Pause(cb.Time), nil
	case "onSeek":
		return SeekRequested(cb.Time), nil
	case "onBuffer":
		return BufferingStarted(cb.Time), nil
	case "onEnded":
		return Ended(cb.Time), nil
	case "onProgress":
		return TimeObserved(cb.Time), nil
	case "onDuration":
		return DurationKnown(cb.Time), nil
	case "onReady", "onBufferEnd":
		return Event{}, ErrIgnored
	}
	return Event{}, fmt.Errorf("%w: react-player %q", ErrUnknownEvent, cb.Name)
}

// YouTube iframe API state codes.
const (
	YouTubeUnstarted = -1
	YouTubeEnded     = 0
	YouTubePlaying   = 1
	YouTubePaused    = 2
	YouTubeBuffering = 3
	YouTubeCued      = 5
)

// YouTube translates onStateChange codes plus polled getCurrentTime values.
// The SDK reports the post-seek position on PAUSED, so pauses are pinned
// to the last polled time instead.
type YouTube struct {
	lastPolled float64
}

func (y *YouTube) Translate(cb Callback) (Event, error) {
	switch cb.Name {
	case "poll":
		y.lastPolled = cb.Time
		return TimeObserved(cb.Time), nil
	case "duration":
		return DurationKnown(cb.Time), nil
	case "statechange":
	default:
		return Event{}, fmt.Errorf("%w: youtube %q", ErrUnknownEvent, cb.Name)
	}

	switch cb.State {
	case YouTubePlaying:
		return Play(cb.Time), nil
	case YouTubePaused:
		return Pause(y.lastPolled), nil
	case YouTubeBuffering:
		return BufferingStarted(cb.Time), nil
	case YouTubeEnded:
		return Ended(cb.Time), nil
	case YouTubeUnstarted, YouTubeCued:
		return Event{}, ErrIgnored
	}
	return Event{}, fmt.Errorf("%w: youtube state %d", ErrUnknownEvent, cb.State)
}

// Decode is a stateless one-shot translation. For YouTube, name is either
// "poll", "duration" or a numeric state code, and value is the position the
// caller last read from the player.
func Decode(vendor, name string, value float64) (Event, error) {
	a, err := NewAdapter(vendor)
	if err != nil {
		return Event{}, err
	}
	if y, ok := a.(*YouTube); ok {
		if code, convErr := strconv.Atoi(name); convErr == nil {
			y.lastPolled = value
			return y.Translate(Callback{Name: "statechange", State: code, Time: value})
		}
	}
	return a.Translate(Callback{Name: name, Time: value})
}
