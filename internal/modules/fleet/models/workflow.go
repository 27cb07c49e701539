package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fleettrack/telematics-be/internal/core/workflow"
)

// Workflow is a tenant-scoped automation rule
type Workflow struct {
	ID          uuid.UUID           `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID    uuid.UUID           `json:"tenant_id" gorm:"type:uuid;not null;index:idx_workflows_tenant_active"`
	Name        string              `json:"name" gorm:"type:varchar(255);not null"`
	Description string              `json:"description" gorm:"type:text"`
	IsActive    bool                `json:"is_active" gorm:"default:true;index:idx_workflows_tenant_active"`
	Metadata    datatypes.JSON      `json:"metadata" gorm:"type:jsonb;default:'{}'"`
	Triggers    []WorkflowTrigger   `json:"triggers" gorm:"foreignKey:WorkflowID;constraint:OnDelete:CASCADE"`
	Conditions  []WorkflowCondition `json:"conditions" gorm:"foreignKey:WorkflowID;constraint:OnDelete:CASCADE"`
	Actions     []WorkflowAction    `json:"actions" gorm:"foreignKey:WorkflowID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time           `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt      `json:"-" gorm:"index"`
}

func (Workflow) TableName() string {
	return "workflows"
}

// WorkflowTrigger binds a workflow to an event type
type WorkflowTrigger struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkflowID uuid.UUID      `json:"workflow_id" gorm:"type:uuid;not null;index"`
	EventType  string         `json:"event_type" gorm:"type:varchar(100);not null;index"`
	Filter     datatypes.JSON `json:"filter" gorm:"type:jsonb;default:'{}'"`
}

func (WorkflowTrigger) TableName() string {
	return "workflow_triggers"
}

// WorkflowCondition is one predicate of a workflow's condition tree
type WorkflowCondition struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkflowID      uuid.UUID      `json:"workflow_id" gorm:"type:uuid;not null;index"`
	Field           string         `json:"field" gorm:"type:varchar(255);not null"`
	Operator        string         `json:"operator" gorm:"type:varchar(50);not null"`
	Value           datatypes.JSON `json:"value" gorm:"type:jsonb"`
	LogicalOperator string         `json:"logical_operator" gorm:"type:varchar(10);not null;default:'and'"`
	GroupKey        string         `json:"group_key" gorm:"type:varchar(100);not null;default:''"`
	Position        int            `json:"position" gorm:"not null;default:0"`
}

func (WorkflowCondition) TableName() string {
	return "workflow_conditions"
}

// WorkflowAction is one step run when the workflow matches
type WorkflowAction struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkflowID  uuid.UUID      `json:"workflow_id" gorm:"type:uuid;not null;index"`
	ActionType  string         `json:"action_type" gorm:"type:varchar(50);not null"`
	TargetModel string         `json:"target_model" gorm:"type:varchar(50);not null"`
	Parameters  datatypes.JSON `json:"parameters" gorm:"type:jsonb;not null;default:'{}'"`
	Position    int            `json:"position" gorm:"not null;default:0"`
	StopOnError bool           `json:"stop_on_error" gorm:"not null;default:false"`
}

func (WorkflowAction) TableName() string {
	return "workflow_actions"
}

// ToDomain converts the row and its loaded children to the engine's model
func (w *Workflow) ToDomain() workflow.Workflow {
	out := workflow.Workflow{
		ID:          w.ID,
		TenantID:    w.TenantID,
		Name:        w.Name,
		Description: w.Description,
		Active:      w.IsActive,
		Metadata:    decodeMap(w.Metadata),
		Triggers:    make([]workflow.Trigger, 0, len(w.Triggers)),
		Conditions:  make([]workflow.Condition, 0, len(w.Conditions)),
		Actions:     make([]workflow.Action, 0, len(w.Actions)),
	}
	for _, t := range w.Triggers {
		out.Triggers = append(out.Triggers, workflow.Trigger{
			ID:        t.ID,
			EventType: workflow.EventType(t.EventType),
			Filter:    decodeMap(t.Filter),
		})
	}
	for _, c := range w.Conditions {
		out.Conditions = append(out.Conditions, workflow.Condition{
			ID:              c.ID,
			Field:           c.Field,
			Operator:        workflow.Operator(c.Operator),
			Value:           decodeValue(c.Value),
			LogicalOperator: workflow.ParseLogicalOperator(c.LogicalOperator),
			Group:           c.GroupKey,
			Position:        c.Position,
		})
	}
	for _, a := range w.Actions {
		params := decodeMap(a.Parameters)
		if params == nil {
			params = map[string]any{}
		}
		out.Actions = append(out.Actions, workflow.Action{
			ID:          a.ID,
			Type:        workflow.ActionType(a.ActionType),
			TargetModel: a.TargetModel,
			Parameters:  params,
			Position:    a.Position,
			StopOnError: a.StopOnError,
		})
	}
	return out
}

// WorkflowFromDomain builds a row with children from the engine's model.
// Child ids are kept when set so updates preserve them.
func WorkflowFromDomain(wf workflow.Workflow) (*Workflow, error) {
	metadata, err := encodeJSON(wf.Metadata, "{}")
	if err != nil {
		return nil, err
	}
	row := &Workflow{
		ID:          wf.ID,
		TenantID:    wf.TenantID,
		Name:        wf.Name,
		Description: wf.Description,
		IsActive:    wf.Active,
		Metadata:    metadata,
	}
	for _, t := range wf.Triggers {
		filter, err := encodeJSON(t.Filter, "{}")
		if err != nil {
			return nil, err
		}
		row.Triggers = append(row.Triggers, WorkflowTrigger{
			ID:         t.ID,
			WorkflowID: wf.ID,
			EventType:  string(t.EventType),
			Filter:     filter,
		})
	}
	for _, c := range wf.Conditions {
		var value datatypes.JSON
		if c.Value != nil {
			if value, err = encodeJSON(c.Value, "null"); err != nil {
				return nil, err
			}
		}
		row.Conditions = append(row.Conditions, WorkflowCondition{
			ID:              c.ID,
			WorkflowID:      wf.ID,
			Field:           c.Field,
			Operator:        string(c.Operator),
			Value:           value,
			LogicalOperator: string(workflow.ParseLogicalOperator(string(c.LogicalOperator))),
			GroupKey:        c.Group,
			Position:        c.Position,
		})
	}
	for _, a := range wf.Actions {
		params, err := encodeJSON(a.Parameters, "{}")
		if err != nil {
			return nil, err
		}
		row.Actions = append(row.Actions, WorkflowAction{
			ID:          a.ID,
			WorkflowID:  wf.ID,
			ActionType:  string(a.Type),
			TargetModel: a.TargetModel,
			Parameters:  params,
			Position:    a.Position,
			StopOnError: a.StopOnError,
		})
	}
	return row, nil
}
