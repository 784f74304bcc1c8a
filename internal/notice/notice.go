// Package notice carries user-visible notifications raised by the tracker
// and the sync client. Rendering them is left to the embedding UI.
package notice

import (
	"sync"

	"go.uber.org/zap"
)

type Kind string

const (
	SaveFailed   Kind = "save_failed"
	SkipRejected Kind = "skip_rejected"
	Resumed      Kind = "resumed"
	Saved        Kind = "saved"
)

type Notice struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(n Notice)
}

// Func adapts a plain function to Notifier.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = Func(func(Notice) {})

// Log writes notices to a zap logger. Failures go out at warn.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Notify(n Notice) {
	if l.Logger == nil {
		return
	}
	fields := []zap.Field{zap.String("kind", string(n.Kind)), zap.String("message", n.Message)}
	if n.Kind == SaveFailed {
		l.Logger.Warn("notice", fields...)
		return
	}
	l.Logger.Info("notice", fields...)
}

// Recorder keeps every notice in order. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.notices {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

// Multi fans a notice out to several notifiers.
func Multi(ns ...Notifier) Notifier {
	return Func(func(n Notice) {
		for _, x := range ns {
			if x != nil {
				x.Notify(n)
			}
		}
	})
}
