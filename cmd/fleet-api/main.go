package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fleettrack/telematics-be/internal/core/events"
	"github.com/fleettrack/telematics-be/internal/core/telemetry"
	"github.com/fleettrack/telematics-be/internal/modules/fleet"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/handlers"
	"github.com/fleettrack/telematics-be/internal/shared/config"
	"github.com/fleettrack/telematics-be/internal/shared/database"
	"github.com/fleettrack/telematics-be/internal/shared/utils"

	_ "github.com/fleettrack/telematics-be/cmd/fleet-api/docs"
)

// @title Fleet Workflow API
// @version 1.0
// @description Tenant workflow rules evaluated against fleet telematics events
// @host localhost:8080
// @BasePath /
func main() {
	cfg := config.LoadConfig()
	utils.InitLogger(cfg.LogLevel, !cfg.IsProduction())
	logger := utils.NewLogger("fleet-api")
	logger.Info().Str("port", cfg.Port).Str("bus", cfg.EventBus).Msg("🚀 Starting fleet-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTelServiceName, cfg.OTelEnabled)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracer shutdown failed")
		}
	}()

	opts := database.DefaultOptions()
	opts.Debug = !cfg.IsProduction() && cfg.LogLevel == "debug"
	db, err := database.NewDB(cfg.DatabaseURL, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	defer db.Close()

	checks := map[string]handlers.HealthCheck{
		"database": db.PingContext,
	}

	var rdb redis.UniversalClient
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(redisOpts)
		defer client.Close()
		rdb = client
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		logger.Info().Msg("🧠 Workflow cache enabled")
	} else {
		logger.Warn().Msg("⚠️  REDIS_URL not set, workflow cache disabled")
	}

	module := fleet.NewModule(db.GORM, rdb, fleet.ConfigFrom(cfg), logger)

	bus, err := fleet.OpenBus(fleet.BusOptionsFromConfig(cfg), db.GORM, logger.With().Str("component", "event_bus").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open event bus")
	}
	defer bus.Close()

	// The memory bus only reaches subscribers in this process, so the engine
	// runs here instead of in workflow-worker.
	busDone := make(chan error, 1)
	if bus.Kind() == config.BusMemory {
		emailService := fleet.NewEmailService(cfg, logger)
		logger.Info().Str("provider", emailService.GetProviderName()).Msg("📧 Email provider")
		listener := module.NewListener(emailService)
		go func() {
			busDone <- bus.Run(ctx, listener, events.LogDeadLetter(logger))
		}()
	} else {
		close(busDone)
	}

	app := fiber.New(fiber.Config{
		AppName:               "Fleet Workflow API",
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		DisableStartupMessage: cfg.IsProduction(),
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Get("/swagger/*", swagger.HandlerDefault)

	module.RegisterRoutes(app, bus, cfg.OTelServiceName, checks)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down fleet-api")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	logger.Info().Msgf("✅ fleet-api running at :%s", cfg.Port)
	logger.Info().Msgf("📄 Swagger UI: http://localhost:%s/swagger/", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error().Err(err).Msg("http server stopped")
	}

	stop()
	if err := <-busDone; err != nil {
		logger.Error().Err(err).Msg("event bus stopped with error")
	}
}
