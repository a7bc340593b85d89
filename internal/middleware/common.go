package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config customises the inspector middleware chain.
type Config struct {
	Logger *zerolog.Logger
	// AllowOrigins restricts browser access to the inspector. Empty means any origin.
	AllowOrigins string
}

// Register attaches the middlewares every inspector route shares. Correlation runs before
// observability so request logs carry the id the coordinator reuses for its REST calls.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.Nop()
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}
	origins := cfg.AllowOrigins
	if origins == "" {
		origins = "*"
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(CorrelationID())
	app.Use(Observability(requestLogger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + HeaderCorrelationID,
		AllowMethods:  "GET,POST,OPTIONS",
		ExposeHeaders: HeaderCorrelationID,
	}))
}
