package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"claims-ingest/internal/retry"
)

// Delivery wraps one raw event envelope in transit. The delivery layer,
// not the pipeline, owns redelivery of failed envelopes.
type Delivery struct {
	ID          uuid.UUID
	Envelope    json.RawMessage
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
}

type Handler func(context.Context, Delivery) error

// Queue exposes a minimal contract to publish and consume envelopes.
type Queue interface {
	Publish(ctx context.Context, d Delivery) error
	Worker(ctx context.Context, handler Handler) error
}

// PublishWithRetry attempts to publish with retries and exponential backoff.
func PublishWithRetry(ctx context.Context, q Queue, d Delivery, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := q.Publish(ctx, d); err == nil {
			return nil
		} else if attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, base)):
		}
	}
	return nil
}
