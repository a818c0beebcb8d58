package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/pkg/riskscore"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestCacheKey(t *testing.T) {
	in := riskscore.HASBLEDInput{Hypertension: true}

	k1, err := CacheKey(domain.CalculatorHASBLED, in)
	require.NoError(t, err)
	k2, err := CacheKey(domain.CalculatorHASBLED, in)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Contains(t, k1, "cardio:calc:has_bled:")

	other, err := CacheKey(domain.CalculatorHASBLED, riskscore.HASBLEDInput{Stroke: true})
	require.NoError(t, err)
	assert.NotEqual(t, k1, other)

	// same payload under another calculator must not collide
	cross, err := CacheKey(domain.CalculatorMAGGIC, in)
	require.NoError(t, err)
	assert.NotEqual(t, k1, cross)
}

func TestResultCache_MemoryTier(t *testing.T) {
	ctx := context.Background()
	cache, err := NewResultCacheWithClient(2, time.Minute, nil, testLogger())
	require.NoError(t, err)

	var got riskscore.HASBLEDResult
	assert.False(t, cache.Get(ctx, "a", &got))

	want := riskscore.HASBLED(riskscore.HASBLEDInput{Hypertension: true, Stroke: true})
	require.NoError(t, cache.Set(ctx, "a", want))
	require.True(t, cache.Get(ctx, "a", &got))
	assert.Equal(t, want, got)

	// LRU eviction
	require.NoError(t, cache.Set(ctx, "b", want))
	require.NoError(t, cache.Set(ctx, "c", want))
	assert.False(t, cache.Get(ctx, "a", &got))

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.MemoryHits)
	assert.Equal(t, int64(2), stats.MemoryMisses)
	assert.Equal(t, 2, stats.Entries)

	cache.Purge()
	assert.Equal(t, 0, cache.Stats().Entries)
	assert.NoError(t, cache.Ping(ctx))
	assert.NoError(t, cache.Close())
}

func TestResultCache_Expiry(t *testing.T) {
	ctx := context.Background()
	cache, err := NewResultCacheWithClient(10, 20*time.Millisecond, nil, testLogger())
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, "k", HeparinResult{WeightKg: 80, BolusUnits: 5600}))
	time.Sleep(40 * time.Millisecond)

	var got HeparinResult
	assert.False(t, cache.Get(ctx, "k", &got))
}

func TestNewResultCache_BadRedisURL(t *testing.T) {
	_, err := NewResultCache(domain.CacheConfig{Size: 10, RedisURL: "not-a-url"}, testLogger())
	assert.Error(t, err)
}

func TestResultCache_RedisTier(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() {
		_ = container.Terminate(ctx)
	}()

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	cfg := domain.CacheConfig{Size: 10, RedisURL: fmt.Sprintf("redis://%s/0", endpoint), DefaultTTL: time.Minute}
	writer, err := NewResultCache(cfg, testLogger())
	require.NoError(t, err)
	defer writer.Close()

	want := riskscore.EstimateAblationSuccess(riskscore.AblationInput{
		AFType:       riskscore.AFPersistent,
		Strategy:     riskscore.StrategyPVIPosteriorWall,
		LADiameterMM: 47,
	})
	require.NoError(t, writer.Set(ctx, "shared", want))

	// a second instance only sees the entry through Redis
	reader, err := NewResultCache(cfg, testLogger())
	require.NoError(t, err)
	defer reader.Close()

	var got riskscore.AblationResult
	require.True(t, reader.Get(ctx, "shared", &got))
	assert.Equal(t, want, got)
	assert.Equal(t, int64(1), reader.Stats().RedisHits)

	// now promoted to memory
	require.True(t, reader.Get(ctx, "shared", &got))
	assert.Equal(t, int64(1), reader.Stats().MemoryHits)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	defer client.Close()
	require.NoError(t, client.Set(ctx, "corrupt", "{not json", time.Minute).Err())
	assert.False(t, reader.Get(ctx, "corrupt", &got))
	assert.Equal(t, int64(0), client.Exists(ctx, "corrupt").Val())
}
