package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/redis/go-redis/v9"
)

// Module provides the send rate limiter as a mono module.
type Module struct {
	redisAddr string
	config    Config
	client    *redis.Client
	limiter   Limiter
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new rate limiting module. An empty redisAddr
// disables limiting.
func NewModule(redisAddr string, config Config) *Module {
	if config.RequestsPerWindow <= 0 || config.WindowSize <= 0 {
		config = DefaultConfig()
	}
	return &Module{
		redisAddr: redisAddr,
		config:    config,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ratelimit"
}

// Start connects to Redis when configured.
func (m *Module) Start(ctx context.Context) error {
	m.limiter = AllowAll{Limit: m.config.RequestsPerWindow}
	if m.redisAddr == "" {
		log.Println("[ratelimit] Module started (disabled: no Redis configured)")
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: m.redisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Printf("[ratelimit] Warning: Redis unavailable at %s, limiting disabled: %v", m.redisAddr, err)
		return nil
	}

	m.client = client
	m.limiter = NewSlidingWindowLimiter(client, m.config, "chat:ratelimit:")
	log.Printf("[ratelimit] Module started (%d per %s, redis: %s)", m.config.RequestsPerWindow, m.config.WindowSize, m.redisAddr)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Printf("[ratelimit] Error closing Redis connection: %v", err)
		}
	}
	log.Println("[ratelimit] Module stopped")
	return nil
}

// Health verifies the Redis connection when limiting is enabled.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	details := map[string]any{
		"enabled":             m.client != nil,
		"requests_per_window": m.config.RequestsPerWindow,
		"window_seconds":      m.config.WindowSize.Seconds(),
	}
	if m.client == nil {
		return mono.HealthStatus{Healthy: true, Message: "disabled", Details: details}
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
			Details: details,
		}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational", Details: details}
}

// Limiter returns the active limiter.
func (m *Module) Limiter() Limiter {
	return m.limiter
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "allow", json.Unmarshal, json.Marshal, m.handleAllow,
	); err != nil {
		return fmt.Errorf("failed to register allow service: %w", err)
	}
	log.Printf("[ratelimit] Registered services: allow")
	return nil
}

// handleAllow fails open: a limiter error lets the request through.
func (m *Module) handleAllow(ctx context.Context, req AllowRequest, _ *mono.Msg) (AllowResponse, error) {
	res, err := m.limiter.Allow(ctx, req.Key)
	if err != nil {
		log.Printf("[ratelimit] Warning: limiter error for %s, allowing: %v", req.Key, err)
		return AllowResponse{Allowed: true}, nil
	}
	return AllowResponse{
		Allowed:      res.Allowed,
		Remaining:    res.Remaining,
		RetryAfterMs: res.RetryAfter.Milliseconds(),
	}, nil
}
