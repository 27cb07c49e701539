package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the lifecycle state of a workflow execution
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s ExecutionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// LogEntry records one action attempt
type LogEntry struct {
	ActionID   uuid.UUID      `json:"action_id"`
	ActionType ActionType     `json:"action_type"`
	Success    bool           `json:"success"`
	Message    string         `json:"message,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	DurationMs int64          `json:"duration_ms"`
}

// Execution is the audit record of one workflow firing for one event
type Execution struct {
	ID               uuid.UUID       `json:"id"`
	WorkflowID       uuid.UUID       `json:"workflow_id"`
	TenantID         uuid.UUID       `json:"tenant_id"`
	EventID          uuid.UUID       `json:"event_id"`
	EventType        EventType       `json:"event_type"`
	TriggerSource    string          `json:"trigger_source"`
	TriggerPayload   map[string]any  `json:"trigger_payload"`
	Status           ExecutionStatus `json:"status"`
	Log              []LogEntry      `json:"log"`
	ActionsCompleted int             `json:"actions_completed"`
	ActionsFailed    int             `json:"actions_failed"`
	Error            string          `json:"error,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// NewExecution creates a pending execution of wf for event
func NewExecution(wf *Workflow, event *DomainEvent, now time.Time) *Execution {
	return &Execution{
		ID:             uuid.New(),
		WorkflowID:     wf.ID,
		TenantID:       wf.TenantID,
		EventID:        event.ID,
		EventType:      event.Type,
		TriggerSource:  event.Describe(),
		TriggerPayload: snapshotEvent(event),
		Status:         StatusPending,
		Log:            []LogEntry{},
		CreatedAt:      now,
	}
}

// Start moves a pending execution to running
func (x *Execution) Start(now time.Time) error {
	if err := x.transition(StatusRunning); err != nil {
		return err
	}
	x.StartedAt = &now
	return nil
}

// Append records an action attempt on a running execution
func (x *Execution) Append(entry LogEntry) error {
	if x.Status.IsTerminal() {
		return ErrExecutionTerminal
	}
	if x.Status != StatusRunning {
		return fmt.Errorf("%w: cannot log actions while %s", ErrInvalidTransition, x.Status)
	}
	x.Log = append(x.Log, entry)
	if entry.Success {
		x.ActionsCompleted++
	} else {
		x.ActionsFailed++
	}
	return nil
}

// Complete moves a running execution to completed
func (x *Execution) Complete(now time.Time) error {
	if err := x.transition(StatusCompleted); err != nil {
		return err
	}
	x.CompletedAt = &now
	return nil
}

// Fail moves a pending or running execution to failed with message as the top-level error
func (x *Execution) Fail(now time.Time, message string) error {
	if err := x.transition(StatusFailed); err != nil {
		return err
	}
	if x.StartedAt == nil {
		x.StartedAt = &now
	}
	x.CompletedAt = &now
	x.Error = message
	return nil
}

// Duration returns completed minus started once both are known
func (x *Execution) Duration() (time.Duration, bool) {
	if x.StartedAt == nil || x.CompletedAt == nil {
		return 0, false
	}
	return x.CompletedAt.Sub(*x.StartedAt), true
}

// DurationMs is Duration in milliseconds, or zero while unfinished
func (x *Execution) DurationMs() int64 {
	d, ok := x.Duration()
	if !ok {
		return 0
	}
	return d.Milliseconds()
}

func (x *Execution) transition(to ExecutionStatus) error {
	if x.Status.IsTerminal() {
		return ErrExecutionTerminal
	}
	allowed := false
	switch x.Status {
	case StatusPending:
		allowed = to == StatusRunning || to == StatusFailed
	case StatusRunning:
		allowed = to == StatusCompleted || to == StatusFailed
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, x.Status, to)
	}
	x.Status = to
	return nil
}

// snapshotEvent captures the triggering event as stored on the execution
func snapshotEvent(event *DomainEvent) map[string]any {
	snapshot := map[string]any{
		"event_id":    event.ID.String(),
		"event_type":  string(event.Type),
		"occurred_at": event.OccurredAt.Format(time.RFC3339),
		"subject": map[string]any{
			"type": event.Subject.Type,
			"id":   event.Subject.ID,
		},
		"payload": copyMap(event.Payload),
	}
	if event.Previous != nil {
		snapshot["previous"] = copyMap(event.Previous)
	}
	return snapshot
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
