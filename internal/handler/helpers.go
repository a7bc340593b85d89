package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-sync/internal/middleware"
)

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func requestContext(c *fiber.Ctx) context.Context {
	return middleware.ContextWithCorrelation(c.UserContext(), middleware.GetCorrelationID(c))
}
