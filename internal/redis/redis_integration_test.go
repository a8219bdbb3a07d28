//go:build integration

package redis_test

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ramiqadoumi/leadflow/internal/domain"
	redisstore "github.com/ramiqadoumi/leadflow/internal/redis"
)

var testRedisAddr string

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	redisCtr, err := tcRedis.Run(ctx, "redis:7-alpine")
	if err != nil {
		log.Fatalf("start redis container: %v", err)
	}
	defer redisCtr.Terminate(ctx) //nolint:errcheck

	connStr, err := redisCtr.ConnectionString(ctx)
	if err != nil {
		log.Fatalf("redis connection string: %v", err)
	}
	testRedisAddr = strings.TrimPrefix(connStr, "redis://")

	return m.Run()
}

// newRedisClient flushes the database on cleanup so tests stay independent.
func newRedisClient(t *testing.T) *goredis.Client {
	t.Helper()
	client := redisstore.NewClient(testRedisAddr)
	t.Cleanup(func() {
		client.FlushDB(context.Background()) //nolint:errcheck
		client.Close()                       //nolint:errcheck
	})
	return client
}

func TestLeader_OnlyOneHolder(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()

	a := redisstore.NewLeader(client, "leadflow:seeder:leader", "a", time.Minute)
	b := redisstore.NewLeader(client, "leadflow:seeder:leader", "b", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "holder renews")

	require.NoError(t, b.Release(ctx), "non-holder release is a no-op")
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuota_ConcurrentCallersShareLimit(t *testing.T) {
	client := newRedisClient(t)
	quota := redisstore.NewQuota(client, 10, time.Minute)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := quota.Allow(ctx, "apollo")
			assert.NoError(t, err)
			if ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, allowed.Load())

	ok, err := quota.Allow(ctx, "hunter")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")
}

func TestQuota_WindowSlides(t *testing.T) {
	client := newRedisClient(t)
	quota := redisstore.NewQuota(client, 2, 300*time.Millisecond)
	ctx := context.Background()

	for range 2 {
		ok, err := quota.Allow(ctx, "serper")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := quota.Allow(ctx, "serper")
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(400 * time.Millisecond)
	ok, err = quota.Allow(ctx, "serper")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnrichmentCache_RoundTripAndExpiry(t *testing.T) {
	client := newRedisClient(t)
	cache := redisstore.NewEnrichmentCache(client, time.Second)
	ctx := context.Background()

	email := "jane@acme.de"
	payload := &domain.EnrichmentPayload{Lead: domain.NormalizedLead{Email: &email}}
	require.NoError(t, cache.Set(ctx, "hunter", "ACME.de", payload))

	got, ok, err := cache.Get(ctx, "hunter", "acme.de")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, email, *got.Lead.Email)

	ttl, err := client.TTL(ctx, "enrich:hunter:acme.de").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
