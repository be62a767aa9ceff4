package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RateLimitPort is the limiter as seen by other modules.
type RateLimitPort interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// RateLimitAdapter implements RateLimitPort using the service container.
type RateLimitAdapter struct {
	container mono.ServiceContainer
}

var _ RateLimitPort = (*RateLimitAdapter)(nil)

// NewRateLimitAdapter creates a new RateLimitAdapter.
func NewRateLimitAdapter(container mono.ServiceContainer) *RateLimitAdapter {
	return &RateLimitAdapter{container: container}
}

// Allow checks one request for key.
func (a *RateLimitAdapter) Allow(ctx context.Context, key string) (*Result, error) {
	req := AllowRequest{Key: key}
	var resp AllowResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"allow",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("allow request failed: %w", err)
	}
	if err := resp.Fault.Err(); err != nil {
		return nil, err
	}
	return &Result{
		Allowed:    resp.Allowed,
		Remaining:  resp.Remaining,
		RetryAfter: time.Duration(resp.RetryAfterMs) * time.Millisecond,
	}, nil
}
