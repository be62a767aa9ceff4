package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	domain "github.com/example/chat-app/domain/user"
	"github.com/redis/go-redis/v9"
)

// ProfileCache stores user profiles for the session gate and message views.
type ProfileCache interface {
	// Get returns the cached profile; found is false on a cache miss.
	Get(ctx context.Context, userID string) (profile *domain.Profile, found bool, err error)
	Set(ctx context.Context, profile domain.Profile) error
	Delete(ctx context.Context, userID string) error
	Close() error
}

// CacheStats tracks cache statistics.
type CacheStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Sets    uint64 `json:"sets"`
	Deletes uint64 `json:"deletes"`
	Errors  uint64 `json:"errors"`
}

// RedisProfileCache is a cache-aside profile store backed by Redis.
type RedisProfileCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  CacheStats
}

var _ ProfileCache = (*RedisProfileCache)(nil)

// NewRedisProfileCache creates a profile cache on an existing client.
func NewRedisProfileCache(client *redis.Client, prefix string, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisProfileCache) key(userID string) string {
	return c.prefix + userID
}

// Get retrieves a profile from the cache.
func (c *RedisProfileCache) Get(ctx context.Context, userID string) (*domain.Profile, bool, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddUint64(&c.stats.Misses, 1)
			return nil, false, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var profile domain.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	atomic.AddUint64(&c.stats.Hits, 1)
	return &profile, true, nil
}

// Set stores a profile with the default TTL.
func (c *RedisProfileCache) Set(ctx context.Context, profile domain.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.client.Set(ctx, c.key(profile.ID), data, c.ttl).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache set error: %w", err)
	}

	atomic.AddUint64(&c.stats.Sets, 1)
	return nil
}

// Delete removes a profile from the cache.
func (c *RedisProfileCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache delete error: %w", err)
	}
	atomic.AddUint64(&c.stats.Deletes, 1)
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *RedisProfileCache) Stats() CacheStats {
	return CacheStats{
		Hits:    atomic.LoadUint64(&c.stats.Hits),
		Misses:  atomic.LoadUint64(&c.stats.Misses),
		Sets:    atomic.LoadUint64(&c.stats.Sets),
		Deletes: atomic.LoadUint64(&c.stats.Deletes),
		Errors:  atomic.LoadUint64(&c.stats.Errors),
	}
}

// Ping checks if the Redis connection is healthy.
func (c *RedisProfileCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (c *RedisProfileCache) Close() error {
	return c.client.Close()
}
