package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-sync/internal/api"
	"github.com/noah-isme/gema-chat-sync/internal/auth"
	"github.com/noah-isme/gema-chat-sync/internal/config"
	"github.com/noah-isme/gema-chat-sync/internal/database"
	"github.com/noah-isme/gema-chat-sync/internal/handler"
	"github.com/noah-isme/gema-chat-sync/internal/middleware"
	"github.com/noah-isme/gema-chat-sync/internal/router"
	"github.com/noah-isme/gema-chat-sync/internal/service"
	"github.com/noah-isme/gema-chat-sync/internal/store"
	"github.com/noah-isme/gema-chat-sync/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	credentials := auth.CredentialStore(auth.NewMemoryCredentialStore(cfg.CredentialToken))
	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()

		redisStore := auth.NewRedisCredentialStore(redisClient, cfg.CredentialKey)
		if cfg.CredentialToken != "" {
			if existing, _ := redisStore.Load(ctx); existing == "" {
				if err := redisStore.Save(ctx, cfg.CredentialToken); err != nil {
					log.Fatalf("failed to seed credential: %v", err)
				}
			}
		}
		credentials = redisStore
	}

	httpClient := &http.Client{Timeout: cfg.APITimeout}

	refresher, err := api.NewRefresher(cfg.APIBaseURL, httpClient, logger)
	if err != nil {
		log.Fatalf("failed to create token refresher: %v", err)
	}

	session := auth.NewManager(credentials, refresher, auth.NavigatorFunc(func(reason string) {
		logger.Warn().Str("reason", reason).Msg("session ended, sign in again to continue")
		stop()
	}), logger)

	client, err := api.NewClient(cfg.APIBaseURL, httpClient, session, logger)
	if err != nil {
		log.Fatalf("failed to create api client: %v", err)
	}

	channel := transport.NewChannel(transport.Options{
		URL:                  cfg.SocketURL,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.ReconnectBaseDelay,
		PingInterval:         cfg.PingInterval,
	}, session, session, logger)
	defer channel.Close()

	chatStore := store.New(logger)
	coordinator := service.NewSyncService(service.SyncDependencies{
		Store:     chatStore,
		API:       client,
		Channel:   channel,
		Session:   session,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		Logger:    logger,
		Options: service.SyncOptions{
			UserID:             cfg.UserID,
			UserName:           cfg.UserName,
			PageSize:           cfg.HistoryPageSize,
			Optimistic:         cfg.OptimisticSend,
			RemoteTypingExpiry: cfg.RemoteTypingExpiry,
		},
	})
	defer coordinator.Close()

	typing := service.NewTypingDebouncer(coordinator, cfg.TypingIdleWindow, logger)
	defer typing.Close()

	var sources []service.MembershipSource
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Drain()
		sources = append(sources, service.NewNATSMembershipSource(conn, cfg.NATSMembershipSubject, cfg.UserID))
	}
	watcher := service.NewMembershipWatcher(coordinator, logger, sources...)
	go watcher.Run(ctx)

	if err := coordinator.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("starting without a realtime connection")
	}
	if err := coordinator.LoadRooms(ctx); err != nil {
		logger.Error().Err(err).Msg("initial room load failed")
	}
	if err := coordinator.LoadNotifications(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial notification load failed")
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ServerHeader:          cfg.AppName,
		DisableStartupMessage: !cfg.IsDevelopment(),
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.InspectorOrigins})
	router.Register(app, cfg, router.Dependencies{
		SyncHandler: handler.NewSyncHandler(coordinator, logger),
		Probe:       channel,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Error().Err(err).Msg("inspector server stopped")
		}
	}()

	go runConsole(ctx, os.Stdin, coordinator, typing, logger)

	waitForShutdown(ctx, app, logger)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("client stopped")
}
