package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	cli "github.com/urfave/cli/v3"

	"github.com/fleettrack/telematics-be/internal/core/events"
	"github.com/fleettrack/telematics-be/internal/core/telemetry"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet"
	"github.com/fleettrack/telematics-be/internal/shared/config"
	"github.com/fleettrack/telematics-be/internal/shared/database"
	"github.com/fleettrack/telematics-be/internal/shared/utils"
)

func main() {
	cfg := config.LoadConfig()

	cmd := &cli.Command{
		Name:  "workflow-worker",
		Usage: "Consume fleet domain events and run matching workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				Value:   cfg.DatabaseURL,
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus driver (kafka, database)",
				Value:   cfg.EventBus,
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the workflow cache (optional)",
				Value:   cfg.RedisURL,
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Concurrent event handlers for the database bus",
				Value:   cfg.WorkerConcurrency,
				Sources: cli.EnvVars("WORKER_CONCURRENCY"),
			},
			&cli.BoolFlag{
				Name:    "maintenance",
				Usage:   "Run the retention purges on MAINTENANCE_SCHEDULE",
				Value:   true,
				Sources: cli.EnvVars("WORKER_MAINTENANCE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   cfg.LogLevel,
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg.DatabaseURL = command.String("database-url")
			cfg.EventBus = command.String("event-bus")
			cfg.RedisURL = command.String("redis-url")
			cfg.WorkerConcurrency = command.Int("concurrency")
			cfg.LogLevel = command.String("log-level")
			return run(ctx, cfg, command.String("worker-id"), command.Bool("maintenance"))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("workflow-worker failed")
	}
}

func run(ctx context.Context, cfg *config.Config, workerID string, maintenance bool) error {
	utils.InitLogger(cfg.LogLevel, !cfg.IsProduction())
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}
	logger := utils.NewLogger("workflow-worker").With().Str("worker_id", workerID).Logger()

	if cfg.EventBus == config.BusMemory {
		return fmt.Errorf("event bus %q is in-process only; the engine runs inside fleet-api", cfg.EventBus)
	}

	logger.Info().Str("bus", cfg.EventBus).Msg("🚀 Initializing workflow worker")

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTelServiceName, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracer shutdown failed")
		}
	}()

	db, err := database.NewDB(cfg.DatabaseURL, database.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	var rdb redis.UniversalClient
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		defer client.Close()
		rdb = client
	}

	module := fleet.NewModule(db.GORM, rdb, fleet.ConfigFrom(cfg), logger)

	bus, err := fleet.OpenBus(fleet.BusOptionsFromConfig(cfg), db.GORM, logger.With().Str("component", "event_bus").Logger())
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event bus")
		}
	}()

	if maintenance {
		scheduler := workflow.NewScheduler(logger.With().Str("component", "maintenance").Logger())
		if err := module.ScheduleMaintenance(scheduler, cfg.MaintenanceSchedule, bus.Jobs()); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	emailService := fleet.NewEmailService(cfg, logger)
	logger.Info().Str("provider", emailService.GetProviderName()).Msg("📧 Email provider")

	listener := module.NewListener(emailService)
	logger.Info().Msg("✅ Worker consuming domain events")
	if err := bus.Run(ctx, listener, events.LogDeadLetter(logger)); err != nil {
		return fmt.Errorf("event bus stopped: %w", err)
	}
	logger.Info().Msg("worker stopped")
	return nil
}
