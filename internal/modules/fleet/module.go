package fleet

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fleettrack/telematics-be/internal/core/audit"
	"github.com/fleettrack/telematics-be/internal/core/email"
	"github.com/fleettrack/telematics-be/internal/core/events"
	"github.com/fleettrack/telematics-be/internal/core/jobs"
	"github.com/fleettrack/telematics-be/internal/core/tenant"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/handlers"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/repositories"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/services"
	"github.com/fleettrack/telematics-be/internal/shared/config"
)

// Config tunes the fleet module
type Config struct {
	ActionTimeout      time.Duration
	CacheTTL           time.Duration
	SpeedLimit         float64
	ExecutionRetention time.Duration
}

// ConfigFrom maps the module settings of cfg
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ActionTimeout:      cfg.ActionTimeout,
		CacheTTL:           cfg.WorkflowCacheTTL,
		SpeedLimit:         cfg.SpeedLimit,
		ExecutionRetention: time.Duration(cfg.ExecutionRetentionDays) * 24 * time.Hour,
	}
}

// NewEmailService builds the configured email provider. Without one the
// service still answers, and send_email actions fail with email.ErrNoProvider.
func NewEmailService(cfg *config.Config, logger zerolog.Logger) *email.Service {
	provider, err := email.NewProvider(cfg.EmailProvider, email.Options{
		APIKey:    cfg.EmailAPIKey(),
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("⚠️  Email service not configured")
		return email.NewService(nil)
	}
	return email.NewService(provider)
}

// Module wires the fleet workflow repositories and services
type Module struct {
	db     *gorm.DB
	cfg    Config
	redis  redis.UniversalClient
	logger zerolog.Logger

	Workflows  repositories.WorkflowRepo
	Executions repositories.ExecutionRepo
	Alerts     repositories.AlertRepo
	Cache      *repositories.WorkflowCache
	Audit      *audit.Service

	WorkflowService *services.WorkflowService
	AlertService    *services.AlertService
}

// NewModule builds the module. rdb may be nil, which disables the workflow
// cache and keeps telemetry state in process.
func NewModule(db *gorm.DB, rdb redis.UniversalClient, cfg Config, logger zerolog.Logger) *Module {
	m := &Module{
		db:         db,
		cfg:        cfg,
		redis:      rdb,
		logger:     logger,
		Workflows:  repositories.NewWorkflowRepo(db),
		Executions: repositories.NewExecutionRepo(db),
		Alerts:     repositories.NewAlertRepo(db),
		Audit:      audit.NewService(db, logger.With().Str("component", "audit").Logger()),
	}

	var invalidator services.CacheInvalidator
	if rdb != nil {
		m.Cache = repositories.NewWorkflowCache(rdb, m.Workflows, cfg.CacheTTL, logger.With().Str("component", "workflow_cache").Logger())
		invalidator = m.Cache
	}

	validate := services.NewValidator()
	m.WorkflowService = services.NewWorkflowService(m.Workflows, m.Executions, invalidator, validate, logger.With().Str("component", "workflow_service").Logger())
	m.WorkflowService.UseAudit(m.Audit)
	m.AlertService = services.NewAlertService(m.Alerts, cfg.ActionTimeout, logger.With().Str("component", "alert_service").Logger())
	return m
}

// workflowSource prefers the cache when one is configured
func (m *Module) workflowSource() workflow.WorkflowSource {
	if m.Cache != nil {
		return m.Cache
	}
	return m.Workflows
}

// NewEngine assembles the workflow engine with every built-in action handler
func (m *Module) NewEngine(tenants workflow.TenantResolver, accessor workflow.EntityAccessor, email workflow.EmailSender) *workflow.Engine {
	logger := m.logger.With().Str("component", "workflow_engine").Logger()
	resolver := workflow.NewResolver(accessor, logger)
	executor := workflow.NewActionExecutor(resolver, logger, m.cfg.ActionTimeout,
		workflow.NewCreateAlertHandler(m.AlertService),
		workflow.NewLogAlertHandler(logger),
		workflow.NewSendEmailHandler(email),
		workflow.NewCallWebhookHandler(nil),
	)
	return workflow.NewEngine(m.workflowSource(), m.Executions, tenants, resolver, executor, logger)
}

// NewListener builds the engine against the database and wraps it for the
// event bus
func (m *Module) NewListener(email workflow.EmailSender) *events.Listener {
	engine := m.NewEngine(tenant.NewResolver(m.db), repositories.NewEntityAccessor(m.db), email)
	return events.NewListener(engine, m.logger.With().Str("component", "event_listener").Logger())
}

// RegisterRoutes mounts the HTTP API. Ingested events go to the bus publisher.
func (m *Module) RegisterRoutes(router fiber.Router, bus *Bus, serviceName string, checks map[string]handlers.HealthCheck) {
	publisher := bus.Publisher
	var states repositories.PositionStateStore = repositories.NewMemoryPositionStore()
	if m.redis != nil {
		states = repositories.NewRedisPositionStore(m.redis)
	}
	validate := services.NewValidator()

	eventService := services.NewEventService(publisher, validate, m.logger.With().Str("component", "event_service").Logger())
	telemetryService := services.NewTelemetryService(states, publisher, validate, m.cfg.SpeedLimit, m.logger.With().Str("component", "telemetry_service").Logger())

	handlers.RegisterRoutes(router,
		handlers.NewWorkflowHandler(m.WorkflowService),
		handlers.NewIngestHandler(eventService, telemetryService),
		handlers.NewAlertHandler(m.AlertService),
		handlers.NewHealthHandler(serviceName, bus.Kind(), checks),
	)
	if queue := bus.Jobs(); queue != nil {
		handlers.RegisterDeliveryRoutes(router, handlers.NewDeliveryHandler(queue))
	}
}

// PurgeExecutions removes finished executions older than the retention window
func (m *Module) PurgeExecutions(ctx context.Context) (int64, error) {
	return m.Executions.PurgeFinishedBefore(ctx, time.Now().Add(-m.retention()))
}

func (m *Module) retention() time.Duration {
	if m.cfg.ExecutionRetention <= 0 {
		return 30 * 24 * time.Hour
	}
	return m.cfg.ExecutionRetention
}

// PurgeAlerts removes alerts past their expiry
func (m *Module) PurgeAlerts(ctx context.Context) (int64, error) {
	return m.Alerts.PurgeExpired(ctx, time.Now())
}

// ScheduleMaintenance registers the retention purges on scheduler. queue is
// the job service of the database bus and may be nil.
func (m *Module) ScheduleMaintenance(scheduler *workflow.Scheduler, schedule string, queue *jobs.Service) error {
	tasks := map[string]func(context.Context) (int64, error){
		"purge_executions": m.PurgeExecutions,
		"purge_alerts":     m.PurgeAlerts,
		"purge_audit": func(ctx context.Context) (int64, error) {
			return m.Audit.DeleteOldLogs(ctx, time.Now().Add(-m.retention()))
		},
	}
	if queue != nil {
		tasks["purge_jobs"] = func(ctx context.Context) (int64, error) {
			return queue.Cleanup(ctx, m.retention())
		}
	}
	for name, purge := range tasks {
		err := scheduler.AddTask(name, schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			removed, err := purge(ctx)
			if err != nil {
				m.logger.Error().Err(err).Str("task", name).Msg("maintenance task failed")
				return
			}
			m.logger.Info().Str("task", name).Int64("removed", removed).Msg("maintenance task finished")
		})
		if err != nil {
			return err
		}
	}
	return nil
}
