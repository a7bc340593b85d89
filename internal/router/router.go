package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-chat-sync/internal/config"
	"github.com/noah-isme/gema-chat-sync/internal/handler"
	"github.com/noah-isme/gema-chat-sync/internal/middleware"
	"github.com/noah-isme/gema-chat-sync/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SyncHandler *handler.SyncHandler
	Probe       handler.ConnectionProbe

	// ReconnectLimit caps inspector reconnect requests per client IP and window.
	ReconnectLimit  int
	ReconnectWindow time.Duration
}

// Register wires the inspector routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Probe))

	if deps.SyncHandler == nil {
		return
	}

	guarded := api.Group("", middleware.InspectorAuth(cfg.InspectorToken))
	deps.SyncHandler.Register(guarded)

	limit := deps.ReconnectLimit
	if limit <= 0 {
		limit = 3
	}
	window := deps.ReconnectWindow
	if window <= 0 {
		window = 10 * time.Second
	}
	guarded.Post("/reconnect", middleware.RateLimit("reconnect", limit, window), deps.SyncHandler.Reconnect)
}
