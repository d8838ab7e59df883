package kvstore

import (
	"context"
	"time"
)

// Store is a key/value cache with per-key TTL. It backs both the bearer-token
// claim store and the rate-limit counters (Redis in production, in-memory for
// tests and local runs).
//
// No cross-key transactionality is assumed; every operation stands alone.
type Store interface {
	// Get returns the value at key, or ok=false when the key is absent or its
	// TTL has lapsed.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value at key with the given TTL, replacing any prior value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr atomically increments the integer counter at key, creating it at 1
	// when absent, and returns the new count. It returns ErrNotInteger when
	// the key holds a value that is not an integer counter.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire re-applies a TTL to an existing key. Callers that use it to
	// anchor a window treat failure as non-fatal.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
