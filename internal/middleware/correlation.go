package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderCorrelationID ties an inspector request or a coordinator action to the REST calls it issues.
const HeaderCorrelationID = "X-Correlation-ID"

const correlationLocal = "correlation_id"

type correlationKey struct{}

// CorrelationID adopts the caller's correlation id or mints one, echoes it on the response
// and binds it to the user context so coordinator calls made by the handler reuse it.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(HeaderCorrelationID))
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(correlationLocal, id)
		c.Set(HeaderCorrelationID, id)
		c.SetUserContext(ContextWithCorrelation(c.UserContext(), id))
		return c.Next()
	}
}

// EnsureCorrelation returns a context carrying a correlation id, minting one when ctx has none.
func EnsureCorrelation(ctx context.Context) (context.Context, string) {
	if id := CorrelationIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return ContextWithCorrelation(ctx, id), id
}

// CorrelationIDFromContext extracts the correlation id, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// GetCorrelationID returns the id bound to the active inspector request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlationLocal).(string); ok && id != "" {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

// ContextWithCorrelation attaches id to ctx. Blank ids leave ctx untouched.
func ContextWithCorrelation(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}
