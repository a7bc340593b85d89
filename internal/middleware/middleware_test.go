package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-chat-sync/internal/middleware"
)

func TestInspectorAuthAllowsMatchingBearer(t *testing.T) {
	app := fiber.New()
	app.Get("/", middleware.InspectorAuth("secret"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp := perform(t, app, "Bearer secret")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestInspectorAuthRejectsWrongBearer(t *testing.T) {
	app := fiber.New()
	app.Get("/", middleware.InspectorAuth("secret"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	require.Equal(t, fiber.StatusUnauthorized, perform(t, app, "Bearer nope").StatusCode)
	require.Equal(t, fiber.StatusUnauthorized, perform(t, app, "").StatusCode)
	require.Equal(t, fiber.StatusUnauthorized, perform(t, app, "Basic secret").StatusCode)
}

func TestInspectorAuthDisabledWithoutToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", middleware.InspectorAuth(""), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	require.Equal(t, fiber.StatusNoContent, perform(t, app, "").StatusCode)
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	app := fiber.New()
	logger := zerolog.Nop()
	middleware.Register(app, middleware.Config{Logger: &logger})
	var seen string
	app.Get("/api/v1/ping", func(c *fiber.Ctx) error {
		seen = middleware.CorrelationIDFromContext(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("X-Correlation-ID", "corr-9")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "corr-9", resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, "corr-9", seen)
}

func TestCorrelationIDIsMintedWhenAbsent(t *testing.T) {
	app := fiber.New()
	middleware.Register(app, middleware.Config{})
	app.Get("/api/v1/ping", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	minted := resp.Header.Get(middleware.HeaderCorrelationID)
	require.NotEmpty(t, minted)
	require.NotEqual(t, "req-1", minted)
	require.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), middleware.HeaderCorrelationID)
}

func TestEnsureCorrelationKeepsExistingID(t *testing.T) {
	ctx, id := middleware.EnsureCorrelation(context.Background())
	require.NotEmpty(t, id)
	require.Equal(t, id, middleware.CorrelationIDFromContext(ctx))

	again, same := middleware.EnsureCorrelation(ctx)
	require.Equal(t, id, same)
	require.Equal(t, ctx, again)

	require.Empty(t, middleware.CorrelationIDFromContext(middleware.ContextWithCorrelation(context.Background(), "  ")))
}

func TestRateLimitRejectsBurst(t *testing.T) {
	app := fiber.New()
	app.Post("/", middleware.RateLimit("reconnect", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/", nil), -1)
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}
	require.Equal(t, []int{fiber.StatusAccepted, fiber.StatusAccepted, fiber.StatusTooManyRequests}, statuses)
}

func perform(t *testing.T, app *fiber.App, authorization string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
