package workflow

import (
	"context"

	"github.com/google/uuid"
)

// WorkflowSource loads workflow definitions for the engine
type WorkflowSource interface {
	// FindActiveForEvent returns active workflows of tenantID with at least
	// one trigger on eventType, with triggers, conditions and actions loaded
	FindActiveForEvent(ctx context.Context, tenantID uuid.UUID, eventType EventType) ([]Workflow, error)
}

// ExecutionStore persists execution records
type ExecutionStore interface {
	CreateExecution(ctx context.Context, execution *Execution) error
	UpdateExecution(ctx context.Context, execution *Execution) error
}

// TenantResolver maps an event subject to its owning tenant.
// Returns ErrTenantNotFound when the subject does not exist.
type TenantResolver interface {
	TenantOf(ctx context.Context, ref EntityRef) (uuid.UUID, error)
}
