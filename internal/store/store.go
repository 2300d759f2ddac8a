// Package store defines the key-value storage abstraction behind reading
// sessions and its backends. Values are opaque byte slices (in practice JSON
// documents) with an optional time-to-live.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by [Store.Get] when the key does not exist or its
// TTL has expired.
var ErrNotFound = errors.New("store: key not found")

// Store is a key-value store with TTL support. Implementations must be safe
// for concurrent use.
type Store interface {
	// Set stores value under key. A ttl of zero means the key never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value stored under key, or [ErrNotFound].
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
	// Keys returns all keys matching a glob pattern such as "session:*".
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}
