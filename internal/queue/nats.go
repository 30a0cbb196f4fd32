package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"claims-ingest/internal/retry"
)

const (
	subject = "events.ingest"
	group   = "ingest-workers"
)

// NewNATS constructs a thin NATS-based delivery queue.
func NewNATS(log *slog.Logger, nc *nats.Conn) Queue {
	return &natsQueue{log: log, nc: nc}
}

type natsQueue struct {
	log *slog.Logger
	nc  *nats.Conn
}

func (q *natsQueue) Publish(_ context.Context, d Delivery) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return q.nc.Publish(subject, body)
}

func (q *natsQueue) Worker(ctx context.Context, handler Handler) error {
	sub, err := q.nc.QueueSubscribe(subject, group, func(msg *nats.Msg) {
		q.handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (q *natsQueue) handleMessage(ctx context.Context, msg *nats.Msg, handler Handler) {
	var d Delivery
	if err := json.Unmarshal(msg.Data, &d); err != nil {
		q.log.Error("failed to decode delivery", "err", err)
		return
	}

	if d.NotBefore.After(time.Now()) {
		time.Sleep(time.Until(d.NotBefore))
	}

	if err := handler(ctx, d); err != nil {
		q.redeliver(ctx, d, err)
	}
}

func (q *natsQueue) redeliver(ctx context.Context, d Delivery, handlerErr error) {
	d.Attempts++
	if d.MaxAttempts == 0 {
		d.MaxAttempts = 5
	}

	if d.Attempts < d.MaxAttempts {
		d.NotBefore = time.Now().Add(retry.ExponentialBackoff(d.Attempts, time.Second))
		if err := PublishWithRetry(ctx, q, d, 3, 200*time.Millisecond); err != nil {
			q.log.Error("failed to redeliver envelope", "id", d.ID, "original_err", handlerErr, "publish_err", err)
		}
	} else {
		q.log.Error("envelope permanently failed", "id", d.ID, "original_err", handlerErr)
	}
}
