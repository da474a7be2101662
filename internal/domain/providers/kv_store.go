package providers

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by KeyValueStore.Get for a missing key
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore defines the durable store used to persist filter selections
type KeyValueStore interface {
	// Get retrieves the value stored under key, or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key without expiration
	Set(ctx context.Context, key string, value string) error

	// Remove deletes key; removing a missing key is not an error
	Remove(ctx context.Context, key string) error
}
