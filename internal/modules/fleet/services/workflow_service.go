package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleettrack/telematics-be/internal/core/audit"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/models"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/repositories"
)

// WorkflowRequest is the authoring payload for create and update
type WorkflowRequest struct {
	Name        string             `json:"name" validate:"required,max=255"`
	Description string             `json:"description"`
	IsActive    *bool              `json:"is_active"`
	Metadata    map[string]any     `json:"metadata"`
	Triggers    []TriggerRequest   `json:"triggers" validate:"required,min=1,dive"`
	Conditions  []ConditionRequest `json:"conditions" validate:"dive"`
	Actions     []ActionRequest    `json:"actions" validate:"required,min=1,dive"`
}

type TriggerRequest struct {
	EventType string         `json:"event_type" validate:"required,event_type"`
	Filter    map[string]any `json:"filter"`
}

type ConditionRequest struct {
	Field           string `json:"field" validate:"required"`
	Operator        string `json:"operator" validate:"required,operator"`
	Value           any    `json:"value"`
	LogicalOperator string `json:"logical_operator" validate:"omitempty,logical_operator"`
	Group           any    `json:"group"` // string or number
	Position        *int   `json:"position"`
}

type ActionRequest struct {
	Type        string         `json:"type" validate:"required,action_type"`
	TargetModel string         `json:"target_model" validate:"required"`
	Parameters  map[string]any `json:"parameters"`
	Position    *int           `json:"position"`
	StopOnError bool           `json:"stop_on_error"`
}

// CacheInvalidator drops cached workflow definitions of a tenant
type CacheInvalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// AuditRecorder keeps the change history of workflow definitions
type AuditRecorder interface {
	LogChange(ctx context.Context, tenantID uuid.UUID, action, entity, entityID string, oldValue, newValue any) error
	GetEntityHistory(ctx context.Context, tenantID uuid.UUID, entity, entityID string, limit int) ([]audit.AuditLog, error)
}

const auditEntity = "workflow"

// WorkflowService handles workflow authoring and read access
type WorkflowService struct {
	workflowRepo  repositories.WorkflowRepo
	executionRepo repositories.ExecutionRepo
	cache         CacheInvalidator
	audit         AuditRecorder
	validate      *validator.Validate
	logger        zerolog.Logger
}

// NewWorkflowService creates a new workflow service. cache may be nil.
func NewWorkflowService(
	workflowRepo repositories.WorkflowRepo,
	executionRepo repositories.ExecutionRepo,
	cache CacheInvalidator,
	validate *validator.Validate,
	logger zerolog.Logger,
) *WorkflowService {
	if validate == nil {
		validate = NewValidator()
	}
	return &WorkflowService{
		workflowRepo:  workflowRepo,
		executionRepo: executionRepo,
		cache:         cache,
		validate:      validate,
		logger:        logger,
	}
}

// UseAudit records every authoring write on recorder
func (s *WorkflowService) UseAudit(recorder AuditRecorder) {
	s.audit = recorder
}

// CreateWorkflow validates and stores a new workflow
func (s *WorkflowService) CreateWorkflow(ctx context.Context, tenantID uuid.UUID, req WorkflowRequest) (*workflow.Workflow, error) {
	wf, err := s.build(tenantID, uuid.New(), req)
	if err != nil {
		return nil, err
	}
	row, err := models.WorkflowFromDomain(*wf)
	if err != nil {
		return nil, err
	}
	if err := s.workflowRepo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	s.invalidate(ctx, tenantID)

	s.logger.Info().
		Str("tenant_id", tenantID.String()).
		Str("workflow_id", row.ID.String()).
		Str("name", row.Name).
		Msg("workflow created")

	out := row.ToDomain()
	s.record(ctx, tenantID, audit.ActionCreate, out.ID, nil, &out)
	return &out, nil
}

// UpdateWorkflow replaces a workflow's definition
func (s *WorkflowService) UpdateWorkflow(ctx context.Context, tenantID, id uuid.UUID, req WorkflowRequest) (*workflow.Workflow, error) {
	wf, err := s.build(tenantID, id, req)
	if err != nil {
		return nil, err
	}
	row, err := models.WorkflowFromDomain(*wf)
	if err != nil {
		return nil, err
	}
	before, err := s.snapshot(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.workflowRepo.Replace(ctx, row); err != nil {
		return nil, err
	}
	s.invalidate(ctx, tenantID)

	s.logger.Info().
		Str("tenant_id", tenantID.String()).
		Str("workflow_id", id.String()).
		Msg("workflow updated")

	after, err := s.GetWorkflow(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, audit.ActionUpdate, id, before, after)
	return after, nil
}

// DeleteWorkflow soft-deletes a workflow
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, tenantID, id uuid.UUID) error {
	before, err := s.snapshot(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.workflowRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	s.logger.Info().
		Str("tenant_id", tenantID.String()).
		Str("workflow_id", id.String()).
		Msg("workflow deleted")
	s.record(ctx, tenantID, audit.ActionDelete, id, before, nil)
	return nil
}

// History returns the recorded changes of a workflow, newest first. Deleted
// workflows keep their history.
func (s *WorkflowService) History(ctx context.Context, tenantID, id uuid.UUID, limit int) ([]audit.AuditLog, error) {
	if s.audit == nil {
		return []audit.AuditLog{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.audit.GetEntityHistory(ctx, tenantID, auditEntity, id.String(), limit)
}

func (s *WorkflowService) GetWorkflow(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Workflow, error) {
	row, err := s.workflowRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	wf := row.ToDomain()
	return &wf, nil
}

func (s *WorkflowService) ListWorkflows(ctx context.Context, tenantID uuid.UUID) ([]workflow.Workflow, error) {
	rows, err := s.workflowRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]workflow.Workflow, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// ListExecutions returns the newest executions of a workflow owned by tenantID
func (s *WorkflowService) ListExecutions(ctx context.Context, tenantID, workflowID uuid.UUID, limit int) ([]workflow.Execution, error) {
	if _, err := s.workflowRepo.FindByID(ctx, tenantID, workflowID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.executionRepo.ListByWorkflow(ctx, tenantID, workflowID, limit)
}

func (s *WorkflowService) GetExecution(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Execution, error) {
	return s.executionRepo.FindByID(ctx, tenantID, id)
}

// Catalogue lists every enumeration the authoring UI offers
func (s *WorkflowService) Catalogue() workflow.Catalogue {
	return workflow.BuildCatalogue()
}

// build validates req and converts it to the engine's model
func (s *WorkflowService) build(tenantID, id uuid.UUID, req WorkflowRequest) (*workflow.Workflow, error) {
	if tenantID == uuid.Nil {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrValidation)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	wf := &workflow.Workflow{
		ID:          id,
		TenantID:    tenantID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Active:      active,
		Metadata:    req.Metadata,
	}

	for _, t := range req.Triggers {
		wf.Triggers = append(wf.Triggers, workflow.Trigger{
			EventType: workflow.EventType(t.EventType),
			Filter:    t.Filter,
		})
	}

	var problems []string
	for i, c := range req.Conditions {
		op := workflow.Operator(c.Operator)
		if op.RequiresValue() {
			if err := workflow.CheckConditionValue(op, c.Value); err != nil {
				problems = append(problems, fmt.Sprintf("conditions[%d].value: %v", i, err))
			}
		}
		group, ok := groupKey(c.Group)
		if !ok {
			problems = append(problems, fmt.Sprintf("conditions[%d].group: must be a string or number, got %T", i, c.Group))
		}
		wf.Conditions = append(wf.Conditions, workflow.Condition{
			Field:           strings.TrimSpace(c.Field),
			Operator:        op,
			Value:           c.Value,
			LogicalOperator: workflow.ParseLogicalOperator(c.LogicalOperator),
			Group:           group,
			Position:        positionOr(c.Position, i),
		})
	}

	for i, a := range req.Actions {
		actionType := workflow.ActionType(a.Type)
		if !slices.Contains(actionType.ApplicableModels(), a.TargetModel) {
			problems = append(problems, fmt.Sprintf("actions[%d].target_model: %s does not apply to %s", i, actionType, a.TargetModel))
		}
		for _, key := range actionType.RequiredParameters() {
			if _, ok := a.Parameters[key]; !ok {
				problems = append(problems, fmt.Sprintf("actions[%d].parameters.%s is required", i, key))
			}
		}
		params := a.Parameters
		if params == nil {
			params = map[string]any{}
		}
		wf.Actions = append(wf.Actions, workflow.Action{
			Type:        actionType,
			TargetModel: a.TargetModel,
			Parameters:  params,
			Position:    positionOr(a.Position, i),
			StopOnError: a.StopOnError,
		})
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return wf, nil
}

// snapshot loads the stored definition before a write when auditing is on
func (s *WorkflowService) snapshot(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Workflow, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.GetWorkflow(ctx, tenantID, id)
}

// record writes an audit entry. The authoring write has already happened,
// so a failure here is only logged.
func (s *WorkflowService) record(ctx context.Context, tenantID uuid.UUID, action string, id uuid.UUID, before, after *workflow.Workflow) {
	if s.audit == nil {
		return
	}
	var oldValue, newValue any
	if before != nil {
		oldValue = before
	}
	if after != nil {
		newValue = after
	}
	if err := s.audit.LogChange(ctx, tenantID, action, auditEntity, id.String(), oldValue, newValue); err != nil {
		s.logger.Warn().Err(err).
			Str("tenant_id", tenantID.String()).
			Str("workflow_id", id.String()).
			Str("action", action).
			Msg("failed to record workflow change")
	}
}

func (s *WorkflowService) invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("workflow cache invalidation failed")
	}
}

// groupKey normalises a condition group id; 1 and "1" name the same group
func groupKey(v any) (string, bool) {
	switch g := v.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(g), true
	case json.Number:
		return g.String(), true
	case float64:
		return strconv.FormatFloat(g, 'f', -1, 64), true
	case int:
		return strconv.Itoa(g), true
	case int64:
		return strconv.FormatInt(g, 10), true
	}
	return "", false
}

func positionOr(p *int, fallback int) int {
	if p != nil {
		return *p
	}
	return fallback
}
