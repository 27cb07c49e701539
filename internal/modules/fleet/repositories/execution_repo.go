package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/models"
)

var ErrExecutionNotFound = errors.New("execution not found")

// ExecutionRepo persists workflow executions
type ExecutionRepo interface {
	workflow.ExecutionStore
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Execution, error)
	ListByWorkflow(ctx context.Context, tenantID, workflowID uuid.UUID, limit int) ([]workflow.Execution, error)
	PurgeFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

type executionRepo struct {
	db *gorm.DB
}

func NewExecutionRepo(db *gorm.DB) ExecutionRepo {
	return &executionRepo{db: db}
}

func (r *executionRepo) CreateExecution(ctx context.Context, execution *workflow.Execution) error {
	row, err := models.ExecutionFromDomain(execution)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// UpdateExecution writes the execution unless the stored row is already
// terminal, in which case ErrExecutionTerminal is returned
func (r *executionRepo) UpdateExecution(ctx context.Context, execution *workflow.Execution) error {
	row, err := models.ExecutionFromDomain(execution)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).
		Model(&models.WorkflowExecution{}).
		Where("id = ? AND status NOT IN ?", row.ID, []string{string(workflow.StatusCompleted), string(workflow.StatusFailed)}).
		Updates(map[string]interface{}{
			"status":            row.Status,
			"actions_completed": row.ActionsCompleted,
			"actions_failed":    row.ActionsFailed,
			"execution_log":     row.ExecutionLog,
			"error_message":     row.ErrorMessage,
			"started_at":        row.StartedAt,
			"completed_at":      row.CompletedAt,
			"duration_ms":       row.DurationMs,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update execution %s: %w", row.ID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.WorkflowExecution{}).Where("id = ?", row.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrExecutionNotFound
	}
	return workflow.ErrExecutionTerminal
}

func (r *executionRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Execution, error) {
	var row models.WorkflowExecution
	err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrExecutionNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain()
}

func (r *executionRepo) ListByWorkflow(ctx context.Context, tenantID, workflowID uuid.UUID, limit int) ([]workflow.Execution, error) {
	var rows []models.WorkflowExecution
	query := r.db.WithContext(ctx).
		Where("workflow_id = ? AND tenant_id = ?", workflowID, tenantID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]workflow.Execution, 0, len(rows))
	for i := range rows {
		x, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *x)
	}
	return out, nil
}

// PurgeFinishedBefore deletes terminal executions completed before the cutoff
func (r *executionRepo) PurgeFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", []string{string(workflow.StatusCompleted), string(workflow.StatusFailed)}, before).
		Delete(&models.WorkflowExecution{})
	return res.RowsAffected, res.Error
}
