package ratelimit

import "github.com/example/chat-app/domain/apperror"

// AllowRequest asks whether one more request for Key fits its window.
type AllowRequest struct {
	Key string `json:"key"`
}

// AllowResponse reports the outcome of a check.
type AllowResponse struct {
	Allowed      bool            `json:"allowed"`
	Remaining    int             `json:"remaining"`
	RetryAfterMs int64           `json:"retry_after_ms"`
	Fault        *apperror.Fault `json:"fault,omitempty"`
}
