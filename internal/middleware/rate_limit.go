package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-chat-sync/internal/utils"
)

// RateLimit creates a per-client rate limiter for inspector actions.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return fmt.Sprintf("%s:%s", identifier, c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.Fail(c, fiber.StatusTooManyRequests, "too many requests", nil)
		},
	})
}
