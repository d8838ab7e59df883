package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/transportops/field-service-api/internal/ports/out/kvstore"
)

// ErrRateLimited indicates the caller exhausted its budget for the current
// window. The HTTP boundary maps it to 429.
var ErrRateLimited = errors.New("rate limited")

// counterPrefix namespaces limiter counters away from other cache users.
const counterPrefix = "rl:"

// Limiter is a fixed-window counter on top of the ephemeral kv store.
//
// The window is approximate: concurrent increments are not linearizable and a
// slight burst over the limit at window boundaries is tolerated.
type Limiter struct {
	store kvstore.Store
}

func New(store kvstore.Store) *Limiter {
	return &Limiter{store: store}
}

// Allow consumes one request from the budget for key. It returns
// ErrRateLimited once more than limit requests were seen inside the window.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) error {
	counterKey := counterPrefix + key

	n, err := l.store.Incr(ctx, counterKey)
	if errors.Is(err, kvstore.ErrNotInteger) {
		// First use after the key held something else; start a fresh window.
		if err := l.store.Set(ctx, counterKey, "1", window); err != nil {
			return fmt.Errorf("rate limit reset: %w", err)
		}
		n = 1
	} else if err != nil {
		return fmt.Errorf("rate limit incr: %w", err)
	}

	// Anchor the window to the first request in it. The refresh is
	// best-effort: a failure must not abort the request being limited.
	if err := l.store.Expire(ctx, counterKey, window); err != nil {
		log.Printf("ratelimit: ttl refresh for %q failed: %v", counterKey, err)
	}

	if n > int64(limit) {
		return ErrRateLimited
	}
	return nil
}
