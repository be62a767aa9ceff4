package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()

	testPrefix := "test:chat:ratelimit:"
	client.Del(ctx, testPrefix+"alice", testPrefix+"alice:counter")
	defer client.Del(ctx, testPrefix+"alice", testPrefix+"alice:counter")

	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerWindow: 3, WindowSize: time.Minute}, testPrefix)

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "alice")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !result.Allowed {
			t.Errorf("Request %d should be allowed", i+1)
		}
		if result.Remaining != 3-i-1 {
			t.Errorf("Expected %d remaining, got %d", 3-i-1, result.Remaining)
		}
	}

	result, err := limiter.Allow(ctx, "alice")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Allowed {
		t.Error("4th request should be denied")
	}
	if result.RetryAfter <= 0 {
		t.Error("RetryAfter should be positive")
	}

	count, err := limiter.Count(ctx, "alice")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}
}

func TestSlidingWindowLimiter_WindowExpires(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()

	testPrefix := "test:chat:ratelimit:expiry:"
	defer client.Del(ctx, testPrefix+"bob", testPrefix+"bob:counter")

	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerWindow: 1, WindowSize: 200 * time.Millisecond}, testPrefix)

	if res, _ := limiter.Allow(ctx, "bob"); res == nil || !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	if res, _ := limiter.Allow(ctx, "bob"); res == nil || res.Allowed {
		t.Fatal("second request should be denied")
	}

	time.Sleep(300 * time.Millisecond)

	if res, _ := limiter.Allow(ctx, "bob"); res == nil || !res.Allowed {
		t.Error("request after the window should be allowed")
	}
}

func TestAllowAll(t *testing.T) {
	res, err := AllowAll{Limit: 30}.Allow(context.Background(), "anyone")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !res.Allowed || res.Remaining != 30 {
		t.Errorf("Allow() = %+v", res)
	}
}

func TestModule_DisabledWithoutRedis(t *testing.T) {
	m := NewModule("", Config{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop(context.Background())

	resp, err := m.handleAllow(context.Background(), AllowRequest{Key: "alice"}, nil)
	if err != nil {
		t.Fatalf("handleAllow() error = %v", err)
	}
	if !resp.Allowed {
		t.Error("disabled limiter should allow")
	}

	health := m.Health(context.Background())
	if !health.Healthy || health.Message != "disabled" {
		t.Errorf("Health() = %+v", health)
	}
	if m.config != DefaultConfig() {
		t.Errorf("config = %+v, want defaults", m.config)
	}
}
