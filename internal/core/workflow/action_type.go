package workflow

// ActionType identifies the effect an action performs
type ActionType string

const (
	ActionCreateAlert ActionType = "create_alert"
	ActionLogAlert    ActionType = "log_alert"
	ActionSendEmail   ActionType = "send_email"
	ActionCallWebhook ActionType = "call_webhook"
)

type actionTypeInfo struct {
	label    string
	models   []string
	required []string
}

var allModels = []string{"vehicle", "device", "driver", "geofence", "group"}

var actionTypeOrder = []ActionType{
	ActionCreateAlert,
	ActionLogAlert,
	ActionSendEmail,
	ActionCallWebhook,
}

var actionTypeInfos = map[ActionType]actionTypeInfo{
	ActionCreateAlert: {
		label:    "Create alert",
		models:   []string{"vehicle", "device", "driver", "geofence"},
		required: []string{"title", "content", "severity"},
	},
	ActionLogAlert: {
		label:    "Write to log",
		models:   allModels,
		required: []string{"message"},
	},
	ActionSendEmail: {
		label:    "Send email",
		models:   allModels,
		required: []string{"to", "subject", "body"},
	},
	ActionCallWebhook: {
		label:    "Call webhook",
		models:   allModels,
		required: []string{"url"},
	},
}

// ActionTypes returns every action type in declaration order
func ActionTypes() []ActionType {
	out := make([]ActionType, len(actionTypeOrder))
	copy(out, actionTypeOrder)
	return out
}

func (t ActionType) Valid() bool {
	_, ok := actionTypeInfos[t]
	return ok
}

func (t ActionType) Label() string {
	if info, ok := actionTypeInfos[t]; ok {
		return info.label
	}
	return string(t)
}

// ApplicableModels lists the subject entity types the action makes sense for
func (t ActionType) ApplicableModels() []string {
	return append([]string(nil), actionTypeInfos[t].models...)
}

// RequiredParameters lists parameter keys that must be present before the action runs
func (t ActionType) RequiredParameters() []string {
	return append([]string(nil), actionTypeInfos[t].required...)
}

// Severity of an alert raised by create_alert
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

var severities = []Severity{SeverityInfo, SeverityWarning, SeverityCritical, SeverityEmergency}

// Severities returns the allowed alert severities, lowest first
func Severities() []Severity {
	return append([]Severity(nil), severities...)
}

func (s Severity) Valid() bool {
	for _, v := range severities {
		if v == s {
			return true
		}
	}
	return false
}
