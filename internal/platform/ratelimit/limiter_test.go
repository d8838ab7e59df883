package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	memclock "github.com/transportops/field-service-api/internal/adapters/memory/clock"
	memkvstore "github.com/transportops/field-service-api/internal/adapters/memory/kvstore"
	"github.com/transportops/field-service-api/internal/platform/ratelimit"
)

func TestLimiter_Allow_FixedWindow(t *testing.T) {
	t.Parallel()

	clk := memclock.NewClock(time.Unix(1700000000, 0))
	store := memkvstore.NewStoreWithClock(clk)
	l := ratelimit.New(store)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		if err := l.Allow(ctx, "fsl:CUST-1:D-001:2024-01-01", 10, time.Minute); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if err := l.Allow(ctx, "fsl:CUST-1:D-001:2024-01-01", 10, time.Minute); !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("11th call: got %v, want ErrRateLimited", err)
	}

	// A different key has its own budget.
	if err := l.Allow(ctx, "fsl:CUST-2:D-001:2024-01-01", 10, time.Minute); err != nil {
		t.Fatalf("other key: %v", err)
	}

	// After the window lapses, the first call succeeds again.
	clk.Advance(61 * time.Second)
	if err := l.Allow(ctx, "fsl:CUST-1:D-001:2024-01-01", 10, time.Minute); err != nil {
		t.Fatalf("call after window: %v", err)
	}
}

func TestLimiter_Allow_ResetsNonIntegerCounter(t *testing.T) {
	t.Parallel()

	clk := memclock.NewClock(time.Unix(1700000000, 0))
	store := memkvstore.NewStoreWithClock(clk)
	l := ratelimit.New(store)
	ctx := context.Background()

	// Simulate a type conflict on the counter key.
	if err := store.Set(ctx, "rl:conflicted", "not-a-number", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := l.Allow(ctx, "conflicted", 10, time.Minute); err != nil {
		t.Fatalf("Allow after conflict: %v", err)
	}

	// The reset counted as the first request in a fresh window.
	v, ok, err := store.Get(ctx, "rl:conflicted")
	if err != nil || !ok || v != "1" {
		t.Fatalf("counter after reset: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := l.Allow(ctx, "conflicted", 2, time.Minute); err != nil {
		t.Fatalf("second Allow: %v", err)
	}
	if err := l.Allow(ctx, "conflicted", 2, time.Minute); !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited once limit exceeded, got %v", err)
	}
}
