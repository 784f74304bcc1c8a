package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/example/watch-progress/internal/player"
	"github.com/example/watch-progress/internal/watch"
)

type replayStats struct {
	Events   int
	Ignored  int
	Unknown  int
	Segments []watch.Interval
}

// replay feeds a JSON-lines callback log through adapter into handle.
// Blank lines and lines starting with '#' are skipped.
func replay(r io.Reader, adapter player.Adapter, handle func(player.Event) []watch.Interval) (replayStats, error) {
	var stats replayStats
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		var cb player.Callback
		if err := json.Unmarshal([]byte(raw), &cb); err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		ev, err := adapter.Translate(cb)
		switch {
		case errors.Is(err, player.ErrIgnored):
			stats.Ignored++
			continue
		case errors.Is(err, player.ErrUnknownEvent):
			stats.Unknown++
			continue
		case err != nil:
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		stats.Events++
		stats.Segments = append(stats.Segments, handle(ev)...)
	}
	if err := sc.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// recordingPlayer stands in for the player widget: a replay cannot react to
// commands, so they are only recorded.
type recordingPlayer struct {
	mu    sync.Mutex
	seeks []float64
}

func (p *recordingPlayer) SeekTo(s float64) {
	p.mu.Lock()
	p.seeks = append(p.seeks, s)
	p.mu.Unlock()
}

func (p *recordingPlayer) Play()  {}
func (p *recordingPlayer) Pause() {}

func (p *recordingPlayer) Seeks() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64{}, p.seeks...)
}
