package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/fleettrack/telematics-be/internal/core/audit"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/models"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/repositories"
)

type mockWorkflowRepo struct {
	mock.Mock
}

func (m *mockWorkflowRepo) FindActiveForEvent(ctx context.Context, tenantID uuid.UUID, eventType workflow.EventType) ([]workflow.Workflow, error) {
	args := m.Called(ctx, tenantID, eventType)
	return args.Get(0).([]workflow.Workflow), args.Error(1)
}

func (m *mockWorkflowRepo) Create(ctx context.Context, wf *models.Workflow) error {
	return m.Called(ctx, wf).Error(0)
}

func (m *mockWorkflowRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Workflow, error) {
	args := m.Called(ctx, tenantID, id)
	if wf, ok := args.Get(0).(*models.Workflow); ok {
		return wf, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWorkflowRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Workflow, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]models.Workflow), args.Error(1)
}

func (m *mockWorkflowRepo) Replace(ctx context.Context, wf *models.Workflow) error {
	return m.Called(ctx, wf).Error(0)
}

func (m *mockWorkflowRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

type mockExecutionRepo struct {
	mock.Mock
}

func (m *mockExecutionRepo) CreateExecution(ctx context.Context, x *workflow.Execution) error {
	return m.Called(ctx, x).Error(0)
}

func (m *mockExecutionRepo) UpdateExecution(ctx context.Context, x *workflow.Execution) error {
	return m.Called(ctx, x).Error(0)
}

func (m *mockExecutionRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Execution, error) {
	args := m.Called(ctx, tenantID, id)
	if x, ok := args.Get(0).(*workflow.Execution); ok {
		return x, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockExecutionRepo) ListByWorkflow(ctx context.Context, tenantID, workflowID uuid.UUID, limit int) ([]workflow.Execution, error) {
	args := m.Called(ctx, tenantID, workflowID, limit)
	return args.Get(0).([]workflow.Execution), args.Error(1)
}

func (m *mockExecutionRepo) PurgeFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

var (
	_ repositories.WorkflowRepo  = (*mockWorkflowRepo)(nil)
	_ repositories.ExecutionRepo = (*mockExecutionRepo)(nil)
)

type recordingInvalidator struct {
	tenants []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(_ context.Context, tenantID uuid.UUID) error {
	r.tenants = append(r.tenants, tenantID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []workflow.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event workflow.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []workflow.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]workflow.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type memoryAlertRepo struct {
	alerts []models.Alert
	err    error
}

func (r *memoryAlertRepo) Create(_ context.Context, alert *models.Alert) error {
	if r.err != nil {
		return r.err
	}
	r.alerts = append(r.alerts, *alert)
	return nil
}

func (r *memoryAlertRepo) ListByEntity(_ context.Context, tenantID uuid.UUID, entityType, entityID string, limit int) ([]models.Alert, error) {
	var out []models.Alert
	for _, a := range r.alerts {
		if a.TenantID == tenantID && a.AlertableType == entityType && a.AlertableID == entityID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryAlertRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type auditCall struct {
	action   string
	entityID string
	oldValue any
	newValue any
}

type recordingAuditor struct {
	calls []auditCall
	err   error
}

func (r *recordingAuditor) LogChange(_ context.Context, _ uuid.UUID, action, _, entityID string, oldValue, newValue any) error {
	r.calls = append(r.calls, auditCall{action: action, entityID: entityID, oldValue: oldValue, newValue: newValue})
	return r.err
}

func (r *recordingAuditor) GetEntityHistory(_ context.Context, tenantID uuid.UUID, entity, entityID string, limit int) ([]audit.AuditLog, error) {
	out := make([]audit.AuditLog, 0, len(r.calls))
	for _, c := range r.calls {
		if c.entityID == entityID {
			out = append(out, audit.AuditLog{TenantID: tenantID, Action: c.action, Entity: entity, EntityID: entityID})
		}
	}
	return out, nil
}
