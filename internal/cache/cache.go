package cache

import (
	"context"
	"time"
)

// Cache fronts the document-ownership lookup behind the signed-URL
// endpoint, which the dashboard polls aggressively.
type Cache interface {
	// GetOwnership retrieves a cached ownership record by key.
	// Returns nil if not found.
	GetOwnership(ctx context.Context, key string) (*Ownership, error)

	// SetOwnership stores an ownership record with TTL.
	SetOwnership(ctx context.Context, key string, record *Ownership, ttl time.Duration) error

	// Close closes the cache connection.
	Close() error
}

// Ownership is the cached result of a user-owns-document check.
type Ownership struct {
	DocumentID string `json:"document_id"`
	FileURL    string `json:"file_url"`
}

// Key builds the cache key for one (user, object key) pair.
func Key(userID, objectKey string) string {
	return userID + ":" + objectKey
}
