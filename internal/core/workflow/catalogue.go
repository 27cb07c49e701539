package workflow

// EventTypeEntry describes an event type for authoring UIs
type EventTypeEntry struct {
	Value       EventType `json:"value"`
	Label       string    `json:"label"`
	SubjectType string    `json:"subject_type"`
}

// OperatorEntry describes a condition operator for authoring UIs
type OperatorEntry struct {
	Value         Operator  `json:"value"`
	Label         string    `json:"label"`
	RequiresValue bool      `json:"requires_value"`
	ValueType     ValueType `json:"value_type"`
}

// ActionTypeEntry describes an action type for authoring UIs
type ActionTypeEntry struct {
	Value              ActionType `json:"value"`
	Label              string     `json:"label"`
	ApplicableModels   []string   `json:"applicable_models"`
	RequiredParameters []string   `json:"required_parameters"`
}

// Catalogue lists every enumeration used in workflow definitions
type Catalogue struct {
	EventTypes       []EventTypeEntry  `json:"event_types"`
	Operators        []OperatorEntry   `json:"operators"`
	ActionTypes      []ActionTypeEntry `json:"action_types"`
	Severities       []Severity        `json:"severities"`
	LogicalOperators []LogicalOperator `json:"logical_operators"`
}

// BuildCatalogue assembles the static catalogue in declaration order
func BuildCatalogue() Catalogue {
	c := Catalogue{
		Severities:       Severities(),
		LogicalOperators: []LogicalOperator{LogicalAnd, LogicalOr},
	}
	for _, t := range EventTypes() {
		c.EventTypes = append(c.EventTypes, EventTypeEntry{
			Value:       t,
			Label:       t.Label(),
			SubjectType: t.SubjectType(),
		})
	}
	for _, op := range Operators() {
		c.Operators = append(c.Operators, OperatorEntry{
			Value:         op,
			Label:         op.Label(),
			RequiresValue: op.RequiresValue(),
			ValueType:     op.ValueType(),
		})
	}
	for _, t := range ActionTypes() {
		c.ActionTypes = append(c.ActionTypes, ActionTypeEntry{
			Value:              t,
			Label:              t.Label(),
			ApplicableModels:   t.ApplicableModels(),
			RequiredParameters: t.RequiredParameters(),
		})
	}
	return c
}
