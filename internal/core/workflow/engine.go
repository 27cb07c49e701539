package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleettrack/telematics-be/internal/core/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine runs tenant workflows for incoming domain events
type Engine struct {
	workflows  WorkflowSource
	executions ExecutionStore
	tenants    TenantResolver
	resolver   *Resolver
	conditions *ConditionEvaluator
	actions    *ActionExecutor
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithClock overrides the time source used for execution timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a workflow engine. tenants may be nil when producers
// always stamp the subject's tenant id.
func NewEngine(
	workflows WorkflowSource,
	executions ExecutionStore,
	tenants TenantResolver,
	resolver *Resolver,
	actions *ActionExecutor,
	logger zerolog.Logger,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		workflows:  workflows,
		executions: executions,
		tenants:    tenants,
		resolver:   resolver,
		conditions: NewConditionEvaluator(resolver, logger),
		actions:    actions,
		logger:     logger,
		tracer:     telemetry.Tracer("workflow.engine"),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessEvent runs every matching workflow for event. Per-workflow failures
// are recorded on that workflow's execution and never returned; an error is
// returned only when the event could not be processed at all and delivery
// should be retried.
func (e *Engine) ProcessEvent(ctx context.Context, event DomainEvent) error {
	ctx, span := telemetry.StartSpan(ctx, e.tracer, "workflow.process_event",
		attribute.String(telemetry.EventIDKey, event.ID.String()),
		attribute.String(telemetry.EventTypeKey, string(event.Type)),
		attribute.String(telemetry.SubjectKey, event.Subject.String()),
	)
	defer span.End()

	log := e.logger.With().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("subject", event.Subject.String()).
		Logger()

	if !event.Type.Valid() {
		log.Warn().Msg("ignoring event of unknown type")
		return nil
	}

	tenantID, err := e.resolveTenant(ctx, event.Subject)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			log.Warn().Err(err).Msg("ignoring event without a tenant")
			return nil
		}
		telemetry.SetError(span, err)
		return fmt.Errorf("resolve tenant: %w", err)
	}
	event.Subject.TenantID = tenantID
	event.ProcessedAt = e.now()
	span.SetAttributes(attribute.String(telemetry.TenantIDKey, tenantID.String()))
	log = log.With().Str("tenant_id", tenantID.String()).Logger()

	candidates, err := e.workflows.FindActiveForEvent(ctx, tenantID, event.Type)
	if err != nil {
		telemetry.SetError(span, err)
		return fmt.Errorf("load workflows: %w", err)
	}
	log.Debug().Int("candidates", len(candidates)).Msg("event received")

	for i := range candidates {
		wf := &candidates[i]
		if err := e.runWorkflow(ctx, wf, &event); err != nil {
			log.Error().Err(err).
				Str("workflow_id", wf.ID.String()).
				Msg("workflow run failed")
		}
	}
	return nil
}

func (e *Engine) resolveTenant(ctx context.Context, subject EntityRef) (uuid.UUID, error) {
	if e.tenants == nil {
		if subject.TenantID == uuid.Nil {
			return uuid.Nil, ErrTenantNotFound
		}
		return subject.TenantID, nil
	}
	tenantID, err := e.tenants.TenantOf(ctx, subject)
	if err != nil {
		return uuid.Nil, err
	}
	if tenantID == uuid.Nil {
		return uuid.Nil, ErrTenantNotFound
	}
	return tenantID, nil
}

// runWorkflow evaluates and, when matched, executes one workflow. Any
// unexpected error or panic is recorded as a failed execution.
func (e *Engine) runWorkflow(ctx context.Context, wf *Workflow, event *DomainEvent) (err error) {
	ctx, span := telemetry.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(telemetry.WorkflowIDKey, wf.ID.String()),
		attribute.String(telemetry.WorkflowNameKey, wf.Name),
	)
	defer span.End()

	log := e.logger.With().
		Str("workflow_id", wf.ID.String()).
		Str("event_id", event.ID.String()).
		Logger()

	var execution *Execution
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			telemetry.SetError(span, err)
			e.failUnexpected(ctx, wf, event, execution, err)
		}
	}()

	if !e.eligible(ctx, wf, event) {
		log.Debug().Msg("workflow not eligible for event")
		return nil
	}
	if !e.conditions.EvaluateAll(ctx, wf.Conditions, event) {
		log.Debug().Msg("workflow conditions not met")
		return nil
	}

	execution = NewExecution(wf, event, e.now())
	span.SetAttributes(attribute.String(telemetry.ExecutionIDKey, execution.ID.String()))
	if err := e.executions.CreateExecution(ctx, execution); err != nil {
		execution = nil
		return fmt.Errorf("create execution: %w", err)
	}
	if err := execution.Start(e.now()); err != nil {
		return err
	}
	if err := e.executions.UpdateExecution(ctx, execution); err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	log.Info().Str("execution_id", execution.ID.String()).Msg("workflow matched, running actions")

	for _, action := range wf.OrderedActions() {
		started := e.now()
		result := e.actions.Execute(ctx, action, event, execution)
		finished := e.now()

		entry := LogEntry{
			ActionID:   action.ID,
			ActionType: action.Type,
			Success:    result.Success,
			Data:       result.Data,
			StartedAt:  started,
			FinishedAt: finished,
			DurationMs: finished.Sub(started).Milliseconds(),
		}
		if result.Success {
			entry.Message = "Action completed"
		} else {
			entry.Message = result.Error
		}
		if err := execution.Append(entry); err != nil {
			return err
		}
		if err := e.executions.UpdateExecution(ctx, execution); err != nil {
			log.Warn().Err(err).Msg("failed to persist execution log entry")
		}

		log.Info().
			Str("action_id", action.ID.String()).
			Str("action_type", string(action.Type)).
			Bool("success", result.Success).
			Str("error", result.Error).
			Msg("action finished")

		if !result.Success && action.StopOnError {
			if err := execution.Fail(e.now(), result.Error); err != nil {
				return err
			}
			if err := e.executions.UpdateExecution(ctx, execution); err != nil {
				return fmt.Errorf("update execution: %w", err)
			}
			log.Warn().Str("execution_id", execution.ID.String()).Msg("execution stopped on action failure")
			return nil
		}
	}

	if err := execution.Complete(e.now()); err != nil {
		return err
	}
	if err := e.executions.UpdateExecution(ctx, execution); err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	log.Info().
		Str("execution_id", execution.ID.String()).
		Int("actions_completed", execution.ActionsCompleted).
		Int("actions_failed", execution.ActionsFailed).
		Msg("execution completed")
	return nil
}

// eligible checks activity, tenant ownership and triggers
func (e *Engine) eligible(ctx context.Context, wf *Workflow, event *DomainEvent) bool {
	if !wf.Active || wf.TenantID != event.Subject.TenantID {
		return false
	}
	for _, trigger := range wf.TriggersFor(event.Type) {
		if e.filterMatches(ctx, trigger.Filter, event) {
			return true
		}
	}
	return false
}

func (e *Engine) filterMatches(ctx context.Context, filter map[string]any, event *DomainEvent) bool {
	for path, expected := range filter {
		actual, found := e.resolver.Resolve(ctx, path, event)
		if !found || !looseEqual(actual, expected) {
			return false
		}
	}
	return true
}

// failUnexpected records cause on the workflow's execution, creating one if
// the failure happened before it existed
func (e *Engine) failUnexpected(ctx context.Context, wf *Workflow, event *DomainEvent, execution *Execution, cause error) {
	log := e.logger.With().Str("workflow_id", wf.ID.String()).Str("event_id", event.ID.String()).Logger()

	created := false
	if execution == nil {
		execution = NewExecution(wf, event, e.now())
		created = true
	}
	if execution.Status.IsTerminal() {
		log.Error().Err(cause).Msg("error after execution finished")
		return
	}
	if err := execution.Fail(e.now(), cause.Error()); err != nil {
		log.Error().Err(err).Msg("failed to mark execution failed")
		return
	}

	var err error
	if created {
		err = e.executions.CreateExecution(ctx, execution)
	} else {
		err = e.executions.UpdateExecution(ctx, execution)
	}
	if err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("failed to record failed execution")
		return
	}
	log.Error().Err(cause).Str("execution_id", execution.ID.String()).Msg("execution failed unexpectedly")
}
