package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/fleettrack/telematics-be/internal/core/workflow"
)

// WorkflowExecution represents a single execution of a workflow
type WorkflowExecution struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	WorkflowID       uuid.UUID      `json:"workflow_id" gorm:"type:uuid;not null;index"`
	TenantID         uuid.UUID      `json:"tenant_id" gorm:"type:uuid;not null;index"`
	EventID          uuid.UUID      `json:"event_id" gorm:"type:uuid;not null;index"`
	EventType        string         `json:"event_type" gorm:"type:varchar(100);not null"`
	TriggerSource    string         `json:"trigger_source" gorm:"type:varchar(255)"`
	TriggerData      datatypes.JSON `json:"trigger_data" gorm:"type:jsonb"`
	Status           string         `json:"status" gorm:"type:varchar(50);not null;default:'pending';index"`
	ActionsCompleted int            `json:"actions_completed" gorm:"default:0"`
	ActionsFailed    int            `json:"actions_failed" gorm:"default:0"`
	ExecutionLog     datatypes.JSON `json:"execution_log" gorm:"type:jsonb;default:'[]'"`
	ErrorMessage     string         `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt        time.Time      `json:"created_at" gorm:"index:,sort:desc"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	DurationMs       int64          `json:"duration_ms,omitempty"`
}

func (WorkflowExecution) TableName() string {
	return "workflow_executions"
}

// ExecutionFromDomain converts an engine execution into a row
func ExecutionFromDomain(x *workflow.Execution) (*WorkflowExecution, error) {
	trigger, err := encodeJSON(x.TriggerPayload, "{}")
	if err != nil {
		return nil, err
	}
	entries := x.Log
	if entries == nil {
		entries = []workflow.LogEntry{}
	}
	logData, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution log: %w", err)
	}
	return &WorkflowExecution{
		ID:               x.ID,
		WorkflowID:       x.WorkflowID,
		TenantID:         x.TenantID,
		EventID:          x.EventID,
		EventType:        string(x.EventType),
		TriggerSource:    x.TriggerSource,
		TriggerData:      trigger,
		Status:           string(x.Status),
		ActionsCompleted: x.ActionsCompleted,
		ActionsFailed:    x.ActionsFailed,
		ExecutionLog:     datatypes.JSON(logData),
		ErrorMessage:     x.Error,
		CreatedAt:        x.CreatedAt,
		StartedAt:        x.StartedAt,
		CompletedAt:      x.CompletedAt,
		DurationMs:       x.DurationMs(),
	}, nil
}

// ToDomain converts the row back into an engine execution
func (e *WorkflowExecution) ToDomain() (*workflow.Execution, error) {
	entries := []workflow.LogEntry{}
	if len(e.ExecutionLog) > 0 {
		if err := json.Unmarshal(e.ExecutionLog, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode execution log: %w", err)
		}
	}
	return &workflow.Execution{
		ID:               e.ID,
		WorkflowID:       e.WorkflowID,
		TenantID:         e.TenantID,
		EventID:          e.EventID,
		EventType:        workflow.EventType(e.EventType),
		TriggerSource:    e.TriggerSource,
		TriggerPayload:   decodeMap(e.TriggerData),
		Status:           workflow.ExecutionStatus(e.Status),
		Log:              entries,
		ActionsCompleted: e.ActionsCompleted,
		ActionsFailed:    e.ActionsFailed,
		Error:            e.ErrorMessage,
		CreatedAt:        e.CreatedAt,
		StartedAt:        e.StartedAt,
		CompletedAt:      e.CompletedAt,
	}, nil
}
