package objectstore

import (
	"context"
	"time"
)

// ObjectStore defines interactions with the upload bucket. It's abstract
// so the AWS client can be replaced in tests.
type ObjectStore interface {
	// Exists confirms the object is present and readable.
	Exists(ctx context.Context, bucket, key string) error
	// PresignGet returns a time-limited download URL for the object.
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	// PublicURL constructs the canonical HTTPS URL for the object.
	PublicURL(bucket, key string) string
}
