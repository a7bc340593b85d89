package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-chat-sync/internal/utils"
)

// InspectorAuth guards the inspector routes with a static bearer. An empty token disables
// the check.
func InspectorAuth(token string) fiber.Handler {
	expected := []byte(strings.TrimSpace(token))

	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			return c.Next()
		}

		authorization := c.Get(fiber.HeaderAuthorization)
		if authorization == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authorization header missing", nil)
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.Fail(c, fiber.StatusUnauthorized, "invalid authorization header", nil)
		}

		presented := []byte(strings.TrimSpace(authorization[len(bearer):]))
		if subtle.ConstantTimeCompare(presented, expected) != 1 {
			return utils.Fail(c, fiber.StatusUnauthorized, "invalid token", nil)
		}

		return c.Next()
	}
}
