// Package cache defines the content cache port used by the repository
// context provider.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-valued key cache. A miss is (nil, false, nil); errors are
// reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// BlobKey is the key for file content addressed by its git blob hash. Blob
// hashes change whenever content does, so entries never go stale.
func BlobKey(hash string) string {
	return "blob:" + hash
}
