package service

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cardio-insights-server/internal/domain"
)

const (
	defaultCacheSize = 1000
	defaultCacheTTL  = time.Hour
	cacheKeyPrefix   = "cardio:calc"
)

// cachedResult is a serialized calculator output with its expiry.
type cachedResult struct {
	Data      json.RawMessage `json:"data"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	MemoryHits   int64 `json:"memory_hits"`
	MemoryMisses int64 `json:"memory_misses"`
	RedisHits    int64 `json:"redis_hits"`
	RedisMisses  int64 `json:"redis_misses"`
	Errors       int64 `json:"errors"`
	Entries      int   `json:"entries"`
}

// ResultCache is a two tier cache for calculator outputs: an in-process LRU and an optional
// shared Redis. Entries are addressed by CacheKey.
type ResultCache struct {
	memory *lru.Cache[string, cachedResult]
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	memoryHits   atomic.Int64
	memoryMisses atomic.Int64
	redisHits    atomic.Int64
	redisMisses  atomic.Int64
	failures     atomic.Int64
}

// NewResultCache creates a cache from configuration, connecting to Redis when a URL is set.
func NewResultCache(config domain.CacheConfig, logger *logrus.Logger) (*ResultCache, error) {
	var client *redis.Client
	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		if config.PoolSize > 0 {
			opts.PoolSize = config.PoolSize
		}
		if config.PoolTimeout > 0 {
			opts.PoolTimeout = config.PoolTimeout
		}
		if config.MaxRetries > 0 {
			opts.MaxRetries = config.MaxRetries
		}

		client = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	return NewResultCacheWithClient(config.Size, config.DefaultTTL, client, logger)
}

// NewResultCacheWithClient builds a cache around an existing Redis client, which may be nil.
func NewResultCacheWithClient(size int, ttl time.Duration, client *redis.Client, logger *logrus.Logger) (*ResultCache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	memory, err := lru.New[string, cachedResult](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	return &ResultCache{
		memory: memory,
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// CacheKey derives the key for a calculator input from the SHA-256 of its JSON encoding.
func CacheKey(calc domain.Calculator, input any) (string, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key input: %w", err)
	}
	hash := sha256.Sum256(append([]byte(calc.String()+":"), data...))
	return fmt.Sprintf("%s:%s:%x", cacheKeyPrefix, calc, hash[:16]), nil
}

// Get decodes the cached value for key into dst and reports whether it was found.
// Redis failures are logged and treated as misses.
func (c *ResultCache) Get(ctx context.Context, key string, dst any) bool {
	if entry, ok := c.memory.Get(key); ok {
		if time.Now().Before(entry.ExpiresAt) && json.Unmarshal(entry.Data, dst) == nil {
			c.memoryHits.Add(1)
			return true
		}
		c.memory.Remove(key)
	}
	c.memoryMisses.Add(1)

	if c.redis == nil {
		return false
	}

	val, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.redisMisses.Add(1)
		return false
	}
	if err != nil {
		c.failures.Add(1)
		c.logger.WithError(err).WithField("key", key).Warn("Redis cache read failed")
		return false
	}

	var entry cachedResult
	if err := json.Unmarshal(val, &entry); err != nil || json.Unmarshal(entry.Data, dst) != nil {
		// corrupted entry
		c.redis.Del(ctx, key)
		c.redisMisses.Add(1)
		return false
	}

	c.redisHits.Add(1)
	c.memory.Add(key, entry)
	return true
}

// Set stores value under key in both tiers.
func (c *ResultCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	now := time.Now()
	entry := cachedResult{Data: data, CachedAt: now, ExpiresAt: now.Add(c.ttl)}
	c.memory.Add(key, entry)

	if c.redis == nil {
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.failures.Add(1)
		return fmt.Errorf("failed to write Redis cache: %w", err)
	}
	return nil
}

// Purge empties the in-process tier.
func (c *ResultCache) Purge() {
	c.memory.Purge()
}

// Stats returns a snapshot of the hit counters.
func (c *ResultCache) Stats() CacheStats {
	return CacheStats{
		MemoryHits:   c.memoryHits.Load(),
		MemoryMisses: c.memoryMisses.Load(),
		RedisHits:    c.redisHits.Load(),
		RedisMisses:  c.redisMisses.Load(),
		Errors:       c.failures.Load(),
		Entries:      c.memory.Len(),
	}
}

// Ping checks the Redis tier when one is configured.
func (c *ResultCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection, if any.
func (c *ResultCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
