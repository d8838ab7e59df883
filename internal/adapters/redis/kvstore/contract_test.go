package kvstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/transportops/field-service-api/internal/adapters/contracttest"
	rediskvstore "github.com/transportops/field-service-api/internal/adapters/redis/kvstore"
	kvstoreport "github.com/transportops/field-service-api/internal/ports/out/kvstore"
)

func TestContract_KVStore(t *testing.T) {
	contracttest.RunKVStore(t, func(t *testing.T) (kvstoreport.Store, func()) {
		t.Helper()

		addr := os.Getenv("TEST_REDIS_ADDR")
		if addr == "" {
			t.Skip("TEST_REDIS_ADDR not set; skipping redis contract tests")
		}

		client := redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			t.Fatalf("ping redis at %s: %v", addr, err)
		}
		// Contract keys are prefixed "ct:"; clear leftovers from prior runs.
		keys, err := client.Keys(ctx, "ct:*").Result()
		if err == nil && len(keys) > 0 {
			_ = client.Del(ctx, keys...).Err()
		}

		return rediskvstore.NewStore(client), func() { _ = client.Close() }
	})
}
