package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/platform/config"
	"github.com/example/watch-progress/internal/watch"
)

const (
	SubjectSave = "progress.save"
	Durable     = "progress_save"
	StreamName  = "PROGRESS"
)

// SaveEvent is the payload published by producers that save progress
// asynchronously.
type SaveEvent struct {
	EventID           string           `json:"event_id"`
	SubjectID         string           `json:"subject_id"`
	ContentID         string           `json:"content_id"`
	MergedIntervals   []watch.Interval `json:"mergedIntervals"`
	LastKnownPosition float64          `json:"lastKnownPosition"`
	ContentDuration   float64          `json:"contentDuration"`
}

// Saver is the part of the progress service the consumer drives.
type Saver interface {
	Save(ctx context.Context, subjectID, contentID string, merged []watch.Interval, lastPosition, duration float64) (watch.Record, error)
}

var errInvalidPayload = errors.New("invalid save payload")

type SaveConsumer struct {
	js        nats.JetStreamContext
	svc       Saver
	log       *zap.Logger
	batchSize int
	maxWait   time.Duration
}

func NewSaveConsumer(js nats.JetStreamContext, svc Saver, log *zap.Logger) *SaveConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SaveConsumer{
		js:        js,
		svc:       svc,
		log:       log.With(zap.String("consumer", Durable)),
		batchSize: config.Int("WORKER_BATCH_SIZE", 100),
		maxWait:   time.Duration(config.Int("WORKER_BATCH_INTERVAL_MS", 2000)) * time.Millisecond,
	}
}

// Run pulls progress.save messages until ctx is cancelled. Saves merge, so
// redelivered messages are harmless.
func (c *SaveConsumer) Run(ctx context.Context) error {
	sub, err := c.js.PullSubscribe(SubjectSave, Durable)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectSave, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	c.log.Info("save consumer started", zap.String("subject", SubjectSave))
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(c.batchSize, nats.MaxWait(c.maxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.log.Warn("fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, m := range msgs {
			c.handle(ctx, m)
		}
	}
}

// ackable is the acknowledgement surface of *nats.Msg.
type ackable interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

func (c *SaveConsumer) handle(ctx context.Context, m *nats.Msg) {
	settle(c.log, m, applyMessage(ctx, c.svc, m.Data))
}

// settle acks on success, terminates bad payloads and naks the rest.
func settle(log *zap.Logger, m ackable, err error) {
	var ackErr error
	switch {
	case err == nil:
		ackErr = m.Ack()
	case errors.Is(err, errInvalidPayload):
		log.Warn("dropping invalid save", zap.Error(err))
		ackErr = m.Term()
	default:
		log.Warn("save failed, will be redelivered", zap.Error(err))
		ackErr = m.Nak()
	}
	if ackErr != nil {
		log.Warn("ack failed", zap.Error(ackErr))
	}
}

func applyMessage(ctx context.Context, svc Saver, data []byte) error {
	var ev SaveEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	ev.SubjectID = strings.TrimSpace(ev.SubjectID)
	ev.ContentID = strings.TrimSpace(ev.ContentID)
	if ev.SubjectID == "" || ev.ContentID == "" {
		return fmt.Errorf("%w: subject_id and content_id are required", errInvalidPayload)
	}
	if ev.LastKnownPosition < 0 || ev.ContentDuration < 0 {
		return fmt.Errorf("%w: negative position or duration", errInvalidPayload)
	}
	for i, iv := range ev.MergedIntervals {
		if !iv.Valid() {
			return fmt.Errorf("%w: interval %d", errInvalidPayload, i)
		}
	}
	if _, err := svc.Save(ctx, ev.SubjectID, ev.ContentID, ev.MergedIntervals, ev.LastKnownPosition, ev.ContentDuration); err != nil {
		return fmt.Errorf("event %s: %w", ev.EventID, err)
	}
	return nil
}
