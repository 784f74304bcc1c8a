// Package syncclient persists watch progress to the progress service with
// debounced, merge-based saves, and glues the tracker to it in a Session.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/notice"
	"github.com/example/watch-progress/internal/watch"
)

const (
	DefaultDebounce = 3 * time.Second
	DefaultMaxWait  = 30 * time.Second
)

// ErrStatus is wrapped by every *StatusError.
var ErrStatus = errors.New("syncclient: unexpected status")

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("progress api status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns itself.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// PersistRequest is one save intent. Merged is everything known so far,
// Segments the raw segments closed since the last intent, and Active the
// still-open segment, which replaces any previously reported one.
type PersistRequest struct {
	Merged       []watch.Interval
	Segments     []watch.Interval
	Active       *watch.Interval
	LastPosition float64
	Duration     float64
}

type Options struct {
	BaseURL    string
	ContentID  string
	Tokens     TokenSource
	Notifier   notice.Notifier
	HTTPClient *http.Client
	Logger     *zap.Logger
	Debounce   time.Duration
	MaxWait    time.Duration
}

// Local is the client's current view of progress.
type Local struct {
	Merged            []watch.Interval
	Percentage        float64
	LastKnownPosition float64
	Duration          float64
	Pending           int
}

type pendingSegment struct {
	seq uint64
	iv  watch.Interval
}

type Client struct {
	endpoint string
	tokens   TokenSource
	notify   notice.Notifier
	http     *http.Client
	log      *zap.Logger
	debounce time.Duration
	maxWait  time.Duration

	mu           sync.Mutex
	pending      []pendingSegment
	nextSeq      uint64
	merged       []watch.Interval
	active       *watch.Interval
	lastPosition float64
	duration     float64
	percentage   float64
	timer        *time.Timer
	windowStart  time.Time
	sentGen      uint64
	appliedGen   uint64 // newest request generation applied; older responses are dropped
	closed       bool
	inflight     sync.WaitGroup
}

func New(opts Options) *Client {
	c := &Client{
		endpoint: strings.TrimRight(opts.BaseURL, "/") + "/progress/" + url.PathEscape(opts.ContentID),
		tokens:   opts.Tokens,
		notify:   opts.Notifier,
		http:     opts.HTTPClient,
		log:      opts.Logger,
		debounce: opts.Debounce,
		maxWait:  opts.MaxWait,
		merged:   []watch.Interval{},
	}
	if c.notify == nil {
		c.notify = notice.Discard
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}
	if c.maxWait <= 0 {
		c.maxWait = DefaultMaxWait
	}
	c.log = c.log.With(zap.String("content_id", opts.ContentID))
	return c
}

// SchedulePersist records req and (re)starts the debounce timer.
func (c *Client) SchedulePersist(req PersistRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	for _, iv := range req.Segments {
		if !iv.Valid() {
			continue
		}
		c.nextSeq++
		c.pending = append(c.pending, pendingSegment{seq: c.nextSeq, iv: iv})
	}
	c.merged = watch.Union(c.merged, req.Merged)
	if req.Active != nil && req.Active.Valid() {
		active := *req.Active
		c.active = &active
	} else {
		c.active = nil
	}
	if req.LastPosition >= 0 && !math.IsInf(req.LastPosition, 0) && !math.IsNaN(req.LastPosition) {
		c.lastPosition = req.LastPosition
	}
	if req.Duration > c.duration && !math.IsInf(req.Duration, 0) {
		c.duration = req.Duration
	}
	c.recomputeLocked()

	now := time.Now()
	if c.windowStart.IsZero() {
		c.windowStart = now
	}
	wait := c.debounce
	if left := c.maxWait - now.Sub(c.windowStart); left < wait {
		wait = max(left, 0)
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(wait, c.fire)
}

func (c *Client) fire() {
	// Errors are already logged and surfaced as notices.
	_ = c.flush(context.Background(), true)
}

type saveBody struct {
	MergedIntervals           []watch.Interval `json:"mergedIntervals"`
	TotalUniqueWatchedSeconds float64          `json:"totalUniqueWatchedSeconds"`
	LastKnownPosition         float64          `json:"lastKnownPosition"`
	ProgressPercentage        float64          `json:"progressPercentage"`
	ContentDuration           float64          `json:"contentDuration"`
}

// Flush sends the current state immediately, cancelling any pending timer.
// On failure pending segments are kept for the next save.
func (c *Client) Flush(ctx context.Context) error {
	return c.flush(ctx, false)
}

func (c *Client) flush(ctx context.Context, fromTimer bool) error {
	c.mu.Lock()
	if fromTimer && c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.windowStart = time.Time{}

	sets := [][]watch.Interval{c.merged}
	for _, p := range c.pending {
		sets = append(sets, []watch.Interval{p.iv})
	}
	if c.active != nil {
		sets = append(sets, []watch.Interval{*c.active})
	}
	summary := watch.Summarize(watch.Union(sets...), c.duration)
	if len(summary.Merged) == 0 && c.lastPosition == 0 {
		c.mu.Unlock()
		return nil
	}
	body := saveBody{
		MergedIntervals:           summary.Merged,
		TotalUniqueWatchedSeconds: summary.TotalUniqueWatchedSeconds,
		LastKnownPosition:         c.lastPosition,
		ProgressPercentage:        summary.ProgressPercentage,
		ContentDuration:           c.duration,
	}
	sentThrough := c.nextSeq
	c.sentGen++
	gen := c.sentGen
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	rec, err := c.post(ctx, body)
	if err != nil {
		c.log.Warn("progress save failed", zap.Error(err))
		c.notify.Notify(notice.Notice{Kind: notice.SaveFailed, Message: "progress could not be saved; it will be retried with the next update"})
		return err
	}

	c.mu.Lock()
	kept := c.pending[:0]
	for _, p := range c.pending {
		if p.seq > sentThrough {
			kept = append(kept, p)
		}
	}
	c.pending = kept
	if gen > c.appliedGen {
		c.appliedGen = gen
		c.applyLocked(rec)
	}
	c.mu.Unlock()

	c.log.Debug("progress saved",
		zap.Float64("percentage", rec.ProgressPercentage),
		zap.Int("intervals", len(rec.MergedIntervals)),
	)
	c.notify.Notify(notice.Notice{Kind: notice.Saved, Message: fmt.Sprintf("progress saved (%.0f%%)", rec.ProgressPercentage)})
	return nil
}

// Load fetches the stored record and adopts it as the local state.
func (c *Client) Load(ctx context.Context) (watch.Record, error) {
	data, err := c.do(ctx, http.MethodGet, nil)
	if err != nil {
		return watch.Record{}, err
	}
	var rec watch.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return watch.Record{}, fmt.Errorf("decode progress: %w", err)
	}
	c.mu.Lock()
	prev := c.merged
	c.applyLocked(rec)
	c.merged = watch.Union(prev, c.merged)
	c.recomputeLocked()
	c.mu.Unlock()
	return rec, nil
}

// Close flushes best-effort and waits for in-flight saves or ctx.
func (c *Client) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.Flush(ctx); err != nil {
		c.log.Warn("final progress save failed", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (c *Client) Local() Local {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Local{
		Merged:            append([]watch.Interval{}, c.merged...),
		Percentage:        c.percentage,
		LastKnownPosition: c.lastPosition,
		Duration:          c.duration,
		Pending:           len(c.pending),
	}
}

func (c *Client) applyLocked(rec watch.Record) {
	c.merged = rec.MergedIntervals
	if c.merged == nil {
		c.merged = []watch.Interval{}
	}
	c.lastPosition = rec.LastKnownPosition
	if rec.ContentDuration > c.duration {
		c.duration = rec.ContentDuration
	}
	c.recomputeLocked()
}

// recomputeLocked keeps percentage derived from the local merged set.
func (c *Client) recomputeLocked() {
	c.percentage = watch.Percentage(c.merged, c.duration)
}

func (c *Client) post(ctx context.Context, body saveBody) (watch.Record, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return watch.Record{}, err
	}
	data, err := c.do(ctx, http.MethodPost, bytes.NewReader(b))
	if err != nil {
		return watch.Record{}, err
	}
	var rec watch.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return watch.Record{}, fmt.Errorf("decode progress: %w", err)
	}
	return rec, nil
}

func (c *Client) do(ctx context.Context, method string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err != nil {
		return nil, fmt.Errorf("read progress response: %w", err)
	}
	return data, nil
}
