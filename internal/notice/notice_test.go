package notice

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorderCount(t *testing.T) {
	var r Recorder
	r.Notify(Notice{Kind: SaveFailed, Message: "a"})
	r.Notify(Notice{Kind: Saved})
	r.Notify(Notice{Kind: SaveFailed, Message: "b"})

	if got := r.Count(SaveFailed); got != 2 {
		t.Fatalf("expected 2 save failures, got %d", got)
	}
	if got := len(r.Notices()); got != 3 {
		t.Fatalf("expected 3 notices, got %d", got)
	}
}

func TestLogLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := Log{Logger: zap.New(core)}
	n.Notify(Notice{Kind: SaveFailed, Message: "offline"})
	n.Notify(Notice{Kind: Resumed, Message: "resume from 1:05"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn for save failure, got %s", entries[0].Level)
	}
	if entries[1].Level != zapcore.InfoLevel {
		t.Fatalf("expected info for resume, got %s", entries[1].Level)
	}
}

func TestMultiSkipsNil(t *testing.T) {
	var a, b Recorder
	Multi(&a, nil, &b).Notify(Notice{Kind: Saved})
	if a.Count(Saved) != 1 || b.Count(Saved) != 1 {
		t.Fatalf("expected both recorders to receive the notice")
	}
}
