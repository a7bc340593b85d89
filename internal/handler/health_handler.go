package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-chat-sync/internal/config"
	"github.com/noah-isme/gema-chat-sync/internal/utils"
)

// ConnectionProbe reports whether the realtime channel is currently connected.
type ConnectionProbe interface {
	IsConnected() bool
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Realtime    string    `json:"realtime"`
}

// HealthCheck returns a handler that reports process health. A missing probe reports the
// realtime channel as unknown.
func HealthCheck(cfg config.Config, probe ConnectionProbe) fiber.Handler {
	return func(c *fiber.Ctx) error {
		realtime := "unknown"
		if probe != nil {
			realtime = "disconnected"
			if probe.IsConnected() {
				realtime = "connected"
			}
		}

		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Realtime:    realtime,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
