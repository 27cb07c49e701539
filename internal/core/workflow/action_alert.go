package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AlertAttributes describe an alert raised by a workflow
type AlertAttributes struct {
	Title         string
	Content       string
	Type          string
	Severity      Severity
	AlertableType string
	AlertableID   string
	TenantID      uuid.UUID
	Metadata      map[string]any
	ExpiresAt     *time.Time
}

// AlertCreator persists alerts
type AlertCreator interface {
	CreateAlert(ctx context.Context, attrs AlertAttributes) (uuid.UUID, error)
}

const defaultAlertType = "workflow"

// CreateAlertHandler implements create_alert
type CreateAlertHandler struct {
	alerts AlertCreator
	now    func() time.Time
}

func NewCreateAlertHandler(alerts AlertCreator) *CreateAlertHandler {
	return &CreateAlertHandler{alerts: alerts, now: func() time.Time { return time.Now().UTC() }}
}

func (h *CreateAlertHandler) Type() ActionType { return ActionCreateAlert }

func (h *CreateAlertHandler) Validate(params map[string]any) error {
	severity := stringParam(params, "severity")
	if !Severity(severity).Valid() {
		return fmt.Errorf("Invalid severity: %s", severity)
	}
	if raw, ok := params["expires_at"]; ok && raw != nil && stringParam(params, "expires_at") != "" {
		if _, err := ParseExpiry(raw, h.now()); err != nil {
			return fmt.Errorf("Invalid expires_at: %s", stringParam(params, "expires_at"))
		}
	}
	if raw, ok := params["metadata"]; ok && raw != nil {
		if _, isMap := raw.(map[string]any); !isMap {
			return errors.New("Invalid metadata: expected an object")
		}
	}
	return nil
}

func (h *CreateAlertHandler) Execute(ctx context.Context, params map[string]any, event *DomainEvent) (map[string]any, error) {
	attrs := AlertAttributes{
		Title:         stringParam(params, "title"),
		Content:       stringParam(params, "content"),
		Type:          stringParam(params, "type"),
		Severity:      Severity(stringParam(params, "severity")),
		AlertableType: event.Subject.Type,
		AlertableID:   event.Subject.ID,
		TenantID:      event.Subject.TenantID,
		Metadata:      map[string]any{},
	}
	if attrs.Type == "" {
		attrs.Type = defaultAlertType
	}
	if raw, ok := params["expires_at"]; ok && stringParam(params, "expires_at") != "" {
		expires, err := ParseExpiry(raw, h.now())
		if err != nil {
			return nil, err
		}
		attrs.ExpiresAt = &expires
	}
	if extra, ok := params["metadata"].(map[string]any); ok {
		for k, v := range extra {
			attrs.Metadata[k] = v
		}
	}
	attrs.Metadata["event_id"] = event.ID.String()
	attrs.Metadata["event_type"] = string(event.Type)
	if x, ok := ExecutionFromContext(ctx); ok {
		attrs.Metadata["workflow_id"] = x.WorkflowID.String()
		attrs.Metadata["execution_id"] = x.ID.String()
	}

	id, err := h.alerts.CreateAlert(ctx, attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	return map[string]any{
		"alert_id": id.String(),
		"title":    attrs.Title,
		"severity": string(attrs.Severity),
	}, nil
}

// LogAlertHandler implements log_alert by writing the message to the workflow log stream
type LogAlertHandler struct {
	logger zerolog.Logger
}

func NewLogAlertHandler(logger zerolog.Logger) *LogAlertHandler {
	return &LogAlertHandler{logger: logger}
}

func (h *LogAlertHandler) Type() ActionType { return ActionLogAlert }

func (h *LogAlertHandler) Validate(params map[string]any) error {
	if _, err := logLevel(stringParam(params, "level")); err != nil {
		return err
	}
	return nil
}

func (h *LogAlertHandler) Execute(ctx context.Context, params map[string]any, event *DomainEvent) (map[string]any, error) {
	level, err := logLevel(stringParam(params, "level"))
	if err != nil {
		return nil, err
	}
	message := stringParam(params, "message")

	entry := h.logger.WithLevel(level).
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("subject", event.Subject.String())
	if x, ok := ExecutionFromContext(ctx); ok {
		entry = entry.Str("workflow_id", x.WorkflowID.String()).Str("execution_id", x.ID.String())
	}
	entry.Msg(message)

	return map[string]any{"message": message, "level": level.String()}, nil
}

func logLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("Invalid level: %s", s)
}
