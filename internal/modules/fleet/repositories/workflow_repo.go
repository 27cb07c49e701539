package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/models"
)

var ErrWorkflowNotFound = errors.New("workflow not found")

// WorkflowRepo interface for workflow database operations
type WorkflowRepo interface {
	workflow.WorkflowSource
	Create(ctx context.Context, wf *models.Workflow) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Workflow, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Workflow, error)
	Replace(ctx context.Context, wf *models.Workflow) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

type workflowRepo struct {
	db *gorm.DB
}

// NewWorkflowRepo creates a new workflow repository
func NewWorkflowRepo(db *gorm.DB) WorkflowRepo {
	return &workflowRepo{db: db}
}

// withChildren preloads triggers, conditions and actions in stored order
func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Triggers").
		Preload("Conditions", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Actions", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") })
}

func (r *workflowRepo) FindActiveForEvent(ctx context.Context, tenantID uuid.UUID, eventType workflow.EventType) ([]workflow.Workflow, error) {
	var rows []models.Workflow
	err := withChildren(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Where("EXISTS (SELECT 1 FROM workflow_triggers t WHERE t.workflow_id = workflows.id AND t.event_type = ?)", string(eventType)).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows for %s: %w", eventType, err)
	}

	out := make([]workflow.Workflow, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

func (r *workflowRepo) Create(ctx context.Context, wf *models.Workflow) error {
	if wf.ID == uuid.Nil {
		wf.ID = uuid.New()
	}
	assignChildIDs(wf)
	return r.db.WithContext(ctx).Create(wf).Error
}

func (r *workflowRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Workflow, error) {
	var wf models.Workflow
	err := withChildren(r.db.WithContext(ctx)).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&wf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Workflow, error) {
	var workflows []models.Workflow
	err := withChildren(r.db.WithContext(ctx)).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&workflows).Error
	return workflows, err
}

// Replace overwrites the workflow row and swaps its children in one transaction
func (r *workflowRepo) Replace(ctx context.Context, wf *models.Workflow) error {
	assignChildIDs(wf)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Workflow{}).
			Where("id = ? AND tenant_id = ?", wf.ID, wf.TenantID).
			Updates(map[string]interface{}{
				"name":        wf.Name,
				"description": wf.Description,
				"is_active":   wf.IsActive,
				"metadata":    wf.Metadata,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrWorkflowNotFound
		}

		for _, child := range []interface{}{&models.WorkflowTrigger{}, &models.WorkflowCondition{}, &models.WorkflowAction{}} {
			if err := tx.Where("workflow_id = ?", wf.ID).Delete(child).Error; err != nil {
				return err
			}
		}
		if len(wf.Triggers) > 0 {
			if err := tx.Create(&wf.Triggers).Error; err != nil {
				return err
			}
		}
		if len(wf.Conditions) > 0 {
			if err := tx.Create(&wf.Conditions).Error; err != nil {
				return err
			}
		}
		if len(wf.Actions) > 0 {
			if err := tx.Create(&wf.Actions).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete soft-deletes the workflow; executions keep their reference
func (r *workflowRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&models.Workflow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWorkflowNotFound
	}
	return nil
}

func assignChildIDs(wf *models.Workflow) {
	for i := range wf.Triggers {
		wf.Triggers[i].WorkflowID = wf.ID
		if wf.Triggers[i].ID == uuid.Nil {
			wf.Triggers[i].ID = uuid.New()
		}
	}
	for i := range wf.Conditions {
		wf.Conditions[i].WorkflowID = wf.ID
		if wf.Conditions[i].ID == uuid.Nil {
			wf.Conditions[i].ID = uuid.New()
		}
	}
	for i := range wf.Actions {
		wf.Actions[i].WorkflowID = wf.ID
		if wf.Actions[i].ID == uuid.Nil {
			wf.Actions[i].ID = uuid.New()
		}
	}
}
