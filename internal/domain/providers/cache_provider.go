package providers

import (
	"context"
)

// CacheProvider is the expiring byte cache holding serialized catalog pages.
// Get returns ErrKeyNotFound for a missing or expired key.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching a glob pattern and returns
	// how many were removed
	DeletePattern(ctx context.Context, pattern string) (int, error)

	Exists(ctx context.Context, key string) (bool, error)
}
