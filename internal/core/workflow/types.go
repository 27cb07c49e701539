package workflow

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// LogicalOperator joins a condition to the one that follows it
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// ParseLogicalOperator normalises user input; anything that is not "or" means "and"
func ParseLogicalOperator(s string) LogicalOperator {
	if strings.EqualFold(strings.TrimSpace(s), string(LogicalOr)) {
		return LogicalOr
	}
	return LogicalAnd
}

func (l LogicalOperator) Valid() bool {
	return l == LogicalAnd || l == LogicalOr
}

// Trigger binds a workflow to one event type. Every Filter entry must
// match the resolved value of its key for the trigger to apply.
type Trigger struct {
	ID        uuid.UUID      `json:"id"`
	EventType EventType      `json:"event_type"`
	Filter    map[string]any `json:"filter,omitempty"`
}

// Condition is a single boolean test against event data
type Condition struct {
	ID              uuid.UUID       `json:"id"`
	Field           string          `json:"field"`
	Operator        Operator        `json:"operator"`
	Value           any             `json:"value,omitempty"`
	LogicalOperator LogicalOperator `json:"logical_operator"`
	Group           string          `json:"group"`
	Position        int             `json:"position"`
}

// Action is one configured effect of a workflow
type Action struct {
	ID          uuid.UUID      `json:"id"`
	Type        ActionType     `json:"type"`
	TargetModel string         `json:"target_model"`
	Parameters  map[string]any `json:"parameters"`
	Position    int            `json:"position"`
	StopOnError bool           `json:"stop_on_error"`
}

// Workflow is a tenant owned automation rule
type Workflow struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Active      bool           `json:"active"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Triggers    []Trigger      `json:"triggers"`
	Conditions  []Condition    `json:"conditions"`
	Actions     []Action       `json:"actions"`
}

// TriggersFor returns the triggers bound to eventType
func (w *Workflow) TriggersFor(eventType EventType) []Trigger {
	var out []Trigger
	for _, t := range w.Triggers {
		if t.EventType == eventType {
			out = append(out, t)
		}
	}
	return out
}

// OrderedActions returns the actions sorted by position, keeping declaration order on ties
func (w *Workflow) OrderedActions() []Action {
	out := append([]Action(nil), w.Actions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// OrderedConditions returns the conditions sorted by position, keeping declaration order on ties
func (w *Workflow) OrderedConditions() []Condition {
	return orderConditions(w.Conditions)
}

func orderConditions(conditions []Condition) []Condition {
	out := append([]Condition(nil), conditions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
