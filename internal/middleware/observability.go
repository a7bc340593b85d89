package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-sync/internal/observability"
)

// Observability records Prometheus metrics and structured latency logging for inspector
// endpoints. The scrape endpoint itself is not recorded.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		if !strings.HasPrefix(c.Path(), "/api/") {
			return err
		}

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := fmt.Sprintf("%d", status)

		observability.InspectorRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.InspectorLatency().WithLabelValues(method, route).Observe(duration.Seconds())

		requestLogger := logger.With().
			Str("correlation_id", GetCorrelationID(c)).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Float64("latency_ms", float64(duration)/float64(time.Millisecond)).
			Str("latency_bucket", latencyBucket(duration)).
			Logger()

		switch {
		case status >= fiber.StatusInternalServerError:
			requestLogger.Error().Msg("inspector request failed")
		case status >= fiber.StatusBadRequest:
			requestLogger.Warn().Msg("inspector request completed with client error")
		default:
			requestLogger.Debug().Msg("inspector request completed")
		}

		return err
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 10*time.Millisecond:
		return "<=10ms"
	case duration <= 50*time.Millisecond:
		return "<=50ms"
	case duration <= 250*time.Millisecond:
		return "<=250ms"
	default:
		return ">250ms"
	}
}
