package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxWebhookResponse = 4096

var webhookMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// CallWebhookHandler implements call_webhook
type CallWebhookHandler struct {
	client *http.Client
}

func NewCallWebhookHandler(client *http.Client) *CallWebhookHandler {
	if client == nil {
		client = &http.Client{}
	}
	return &CallWebhookHandler{client: client}
}

func (h *CallWebhookHandler) Type() ActionType { return ActionCallWebhook }

func (h *CallWebhookHandler) Validate(params map[string]any) error {
	raw := stringParam(params, "url")
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("Invalid url: %s", raw)
	}
	if method := webhookMethod(params); !webhookMethods[method] {
		return fmt.Errorf("Invalid method: %s", method)
	}
	if headers, ok := params["headers"]; ok && headers != nil {
		if _, isMap := headers.(map[string]any); !isMap {
			return fmt.Errorf("Invalid headers: expected an object")
		}
	}
	return nil
}

func (h *CallWebhookHandler) Execute(ctx context.Context, params map[string]any, event *DomainEvent) (map[string]any, error) {
	method := webhookMethod(params)
	target := stringParam(params, "url")

	var body io.Reader
	var contentType string
	switch b := params["body"].(type) {
	case nil:
		if method != http.MethodGet && method != http.MethodDelete {
			payload, err := json.Marshal(map[string]any{
				"event_id":   event.ID.String(),
				"event_type": event.Type,
				"subject":    event.Subject,
				"payload":    event.Payload,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			body = bytes.NewReader(payload)
			contentType = "application/json"
		}
	case string:
		body = strings.NewReader(b)
		contentType = "text/plain; charset=utf-8"
		if json.Valid([]byte(b)) {
			contentType = "application/json"
		}
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if headers, ok := params["headers"].(map[string]any); ok {
		for key, value := range headers {
			req.Header.Set(key, Stringify(value))
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponse))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return map[string]any{"status_code": resp.StatusCode, "url": target}, nil
}

func webhookMethod(params map[string]any) string {
	method := strings.ToUpper(strings.TrimSpace(stringParam(params, "method")))
	if method == "" {
		return http.MethodPost
	}
	return method
}
