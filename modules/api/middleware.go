package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/user"
	"github.com/example/chat-app/modules/auth"
	"github.com/example/chat-app/modules/ratelimit"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

const claimsKey = "user"

// AuthMiddleware verifies the bearer token and stores the claims in Locals.
func AuthMiddleware(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return fail(c, apperror.New(apperror.KindAuthFailure, apperror.CodeMissingToken, "Authorization token is required"))
		}

		claims, err := authPort.VerifyToken(c.UserContext(), token)
		if err != nil {
			return fail(c, err)
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// GetClaims returns the claims stored by AuthMiddleware.
func GetClaims(c *fiber.Ctx) (*domain.Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*domain.Claims)
	return claims, ok
}

// RateLimitMiddleware limits sends per user. A limiter error lets the request through.
func RateLimitMiddleware(limiter ratelimit.RateLimitPort, logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := GetClaims(c)
		if !ok || limiter == nil {
			return c.Next()
		}

		result, err := limiter.Allow(c.UserContext(), "send:"+claims.UserID)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", "userID", claims.UserID, "error", err)
			return c.Next()
		}

		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			retry := int(result.RetryAfter.Round(time.Second) / time.Second)
			retry = max(retry, 1)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
			return fail(c, apperror.New(apperror.KindRateLimited, apperror.CodeRateLimited,
				"Too many messages, retry in "+strconv.Itoa(retry)+"s"))
		}
		return c.Next()
	}
}

// requestLogger logs each request except websocket upgrades.
func requestLogger(logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket") {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err)
		}
		logger.Info("HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start).String())
		return err
	}
}

// bearerToken strips an optional "Bearer " prefix.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
