package auth

import (
	"context"
	"testing"
	"time"

	domain "github.com/example/chat-app/domain/user"
	"github.com/redis/go-redis/v9"
)

// Requires Redis running on localhost:6379.
const testRedisAddr = "localhost:6379"

func setupTestRedisCache(t *testing.T) *RedisProfileCache {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	cache := NewRedisProfileCache(client, "test:profile:"+t.Name()+":", time.Minute)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestRedisProfileCache_SetGetDelete(t *testing.T) {
	cache := setupTestRedisCache(t)
	ctx := context.Background()

	avatar := "/uploads/profile_pics/a/me.png"
	profile := domain.Profile{ID: "user-1", Username: "alice", AvatarURL: &avatar}

	if _, found, err := cache.Get(ctx, profile.ID); err != nil || found {
		t.Fatalf("Get() before Set = found %v, err %v", found, err)
	}

	if err := cache.Set(ctx, profile); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, found, err := cache.Get(ctx, profile.ID)
	if err != nil || !found {
		t.Fatalf("Get() = found %v, err %v", found, err)
	}
	if got.Username != "alice" || got.AvatarURL == nil || *got.AvatarURL != avatar {
		t.Errorf("Get() = %+v", got)
	}

	if err := cache.Delete(ctx, profile.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, _ := cache.Get(ctx, profile.ID); found {
		t.Error("Get() after Delete should miss")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 2 || stats.Sets != 1 || stats.Deletes != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}
