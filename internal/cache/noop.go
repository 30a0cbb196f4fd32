package cache

import (
	"context"
	"time"
)

// NoOpCache is a cache implementation that does nothing. Used when no
// Redis is configured - all operations succeed but every read is a miss.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) GetOwnership(ctx context.Context, key string) (*Ownership, error) {
	return nil, nil
}

func (c *NoOpCache) SetOwnership(ctx context.Context, key string, record *Ownership, ttl time.Duration) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}
