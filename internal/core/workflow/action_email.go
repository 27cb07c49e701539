package workflow

import (
	"context"
	"fmt"
	"strings"
)

// EmailSender delivers a single email
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SendEmailHandler implements send_email. "to" may be a single address, a
// comma separated list or an array of addresses.
type SendEmailHandler struct {
	sender EmailSender
}

func NewSendEmailHandler(sender EmailSender) *SendEmailHandler {
	return &SendEmailHandler{sender: sender}
}

func (h *SendEmailHandler) Type() ActionType { return ActionSendEmail }

func (h *SendEmailHandler) Validate(params map[string]any) error {
	recipients := recipientList(params["to"])
	if len(recipients) == 0 {
		return fmt.Errorf("Missing required parameter: to")
	}
	for _, r := range recipients {
		if !strings.Contains(r, "@") {
			return fmt.Errorf("Invalid email address: %s", r)
		}
	}
	return nil
}

func (h *SendEmailHandler) Execute(ctx context.Context, params map[string]any, event *DomainEvent) (map[string]any, error) {
	subject := stringParam(params, "subject")
	body := stringParam(params, "body")
	recipients := recipientList(params["to"])

	sent := make([]string, 0, len(recipients))
	for _, to := range recipients {
		if err := h.sender.SendEmail(ctx, to, subject, body); err != nil {
			return map[string]any{"sent": sent}, fmt.Errorf("failed to send email to %s: %w", to, err)
		}
		sent = append(sent, to)
	}
	return map[string]any{"sent": sent, "subject": subject}, nil
}

func recipientList(v any) []string {
	var raw []string
	switch val := v.(type) {
	case string:
		raw = strings.Split(val, ",")
	case []string:
		raw = val
	case []any:
		for _, item := range val {
			raw = append(raw, Stringify(item))
		}
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
