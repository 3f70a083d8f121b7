package ratelimit

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/metrics"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Backend() string
}

// KeyFunc identifies the caller of a request.
type KeyFunc func(c *fiber.Ctx) string

// ClientKey prefers the X-User-ID header and falls back to the client IP.
func ClientKey(c *fiber.Ctx) string {
	if userID := c.Get("X-User-ID"); userID != "" {
		return userID
	}
	return c.IP()
}

// Middleware rejects requests over the limit with 429. Limiter errors let the
// request through.
func Middleware(limiter Limiter, keyFunc KeyFunc, log *zap.Logger) fiber.Handler {
	if keyFunc == nil {
		keyFunc = ClientKey
	}
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		key := keyFunc(c)

		allowed, err := limiter.Allow(c.UserContext(), key)
		if err != nil {
			log.Error("Rate limiter unavailable",
				zap.String("backend", limiter.Backend()),
				zap.Error(err),
			)
			return c.Next()
		}

		if !allowed {
			metrics.RateLimited.WithLabelValues(limiter.Backend()).Inc()
			log.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}
