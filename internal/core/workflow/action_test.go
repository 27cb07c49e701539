package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alertAction(params map[string]any) Action {
	return Action{ID: uuid.New(), Type: ActionCreateAlert, TargetModel: "vehicle", Parameters: params}
}

func TestActionExecutor_CreateAlertInterpolatesTitle(t *testing.T) {
	alerts := &recordingAlerts{}
	exec := NewActionExecutor(testResolver(), zerolog.Nop(), time.Second, NewCreateAlertHandler(alerts))
	ev := vehicleEvent(EventVehicleSpeedExceeded, map[string]any{"speed": float64(95)}, nil)
	ev.Subject.TenantID = tenantA
	wf := &Workflow{ID: uuid.New(), TenantID: tenantA}
	execution := NewExecution(wf, &ev, time.Now())

	result := exec.Execute(context.Background(), alertAction(map[string]any{
		"title":      "Vehicle {vehicle.registration} Alert",
		"content":    "Speed {event.speed} km/h",
		"severity":   "warning",
		"expires_at": "+2 hours",
		"metadata":   map[string]any{"source": "{vehicle.make}"},
	}), &ev, execution)

	require.True(t, result.Success, result.Error)
	assert.NotEmpty(t, result.Data["alert_id"])
	require.Len(t, alerts.alerts, 1)

	got := alerts.alerts[0]
	assert.Contains(t, got.Title, "AB-123-CD")
	assert.Equal(t, "Speed 95 km/h", got.Content)
	assert.Equal(t, SeverityWarning, got.Severity)
	assert.Equal(t, "workflow", got.Type)
	assert.Equal(t, "vehicle", got.AlertableType)
	assert.Equal(t, "veh-1", got.AlertableID)
	assert.Equal(t, tenantA, got.TenantID)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *got.ExpiresAt, time.Minute)
	assert.Equal(t, "Volvo", got.Metadata["source"])
	assert.Equal(t, execution.ID.String(), got.Metadata["execution_id"])
	assert.Equal(t, wf.ID.String(), got.Metadata["workflow_id"])
}

func TestActionExecutor_MissingRequiredParameter(t *testing.T) {
	alerts := &recordingAlerts{}
	exec := NewActionExecutor(testResolver(), zerolog.Nop(), time.Second, NewCreateAlertHandler(alerts))
	ev := vehicleEvent(EventVehicleSpeedExceeded, nil, nil)

	for _, params := range []map[string]any{
		{"title": "t", "content": "c"},
		{"title": "t", "content": "c", "severity": nil},
		{"title": "t", "content": "c", "severity": "  "},
	} {
		result := exec.Execute(context.Background(), alertAction(params), &ev, nil)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "Missing required parameter")
		assert.Contains(t, result.Error, "severity")
	}
	assert.Empty(t, alerts.alerts)
}

func TestActionExecutor_InvalidSeverity(t *testing.T) {
	alerts := &recordingAlerts{}
	exec := NewActionExecutor(testResolver(), zerolog.Nop(), time.Second, NewCreateAlertHandler(alerts))
	ev := vehicleEvent(EventVehicleSpeedExceeded, nil, nil)

	result := exec.Execute(context.Background(), alertAction(map[string]any{
		"title": "t", "content": "c", "severity": "invalid_severity",
	}), &ev, nil)

	assert.False(t, result.Success)
	assert.Equal(t, "Invalid severity: invalid_severity", result.Error)
	assert.Empty(t, alerts.alerts)
}

func TestActionExecutor_InvalidExpiry(t *testing.T) {
	alerts := &recordingAlerts{}
	exec := NewActionExecutor(testResolver(), zerolog.Nop(), time.Second, NewCreateAlertHandler(alerts))
	ev := vehicleEvent(EventVehicleSpeedExceeded, nil, nil)

	result := exec.Execute(context.Background(), alertAction(map[string]any{
		"title": "t", "content": "c", "severity": "info", "expires_at": "whenever",
	}), &ev, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Invalid expires_at")
}

func TestActionExecutor_CollaboratorErrorBecomesFailure(t *testing.T) {
	alerts := &recordingAlerts{err: errors.New("connection refused")}
	exec := NewActionExecutor(testResolver(), zerolog.Nop(), time.Second, NewCreateAlertHandler(alerts))
	ev := vehicleEvent(EventVehicleSpeedExceeded, nil, nil)

	result := exec.Execute(context.Background(), alertAction(map[string]any{
		"title": "t", "content": "c", "severity": "critical",
	}), &ev, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connection refused")
}

func TestActionExecutor_UnsupportedType(t *testing.T) {
	exec := NewActionExecutor(testResolver(), zerolog.Nop(), time.Second)
	ev := vehicleEvent(EventVehicleSpeedExceeded, nil, nil)

	result := exec.Execute(context.Background(), Action{ID: uuid.New(), Type: ActionSendEmail}, &ev, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Unsupported action type")
}

func TestActionExecutor_PanicBecomesFailure(t *testing.T) {
	handler := &stubHandler{actionType: ActionLogAlert, execute: func(context.Context, map[string]any, *DomainEvent) (map[string]any, error) {
		panic("nil map write")
	}}
	exec := NewActionExecutor(testResolver(), zerolog.Nop(), time.Second, handler)
	ev := vehicleEvent(EventVehicleSpeedExceeded, nil, nil)

	result := exec.Execute(context.Background(), Action{ID: uuid.New(), Type: ActionLogAlert, Parameters: map[string]any{"message": "m"}}, &ev, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "nil map write")
}

func TestActionExecutor_TimeoutBecomesFailure(t *testing.T) {
	handler := &stubHandler{actionType: ActionLogAlert, execute: func(ctx context.Context, _ map[string]any, _ *DomainEvent) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	exec := NewActionExecutor(testResolver(), zerolog.Nop(), 20*time.Millisecond, handler)
	ev := vehicleEvent(EventVehicleSpeedExceeded, nil, nil)

	result := exec.Execute(context.Background(), Action{ID: uuid.New(), Type: ActionLogAlert, Parameters: map[string]any{"message": "m"}}, &ev, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out")
}

func TestActionExecutor_ValidationSeesInterpolatedParameters(t *testing.T) {
	var seen map[string]any
	handler := &stubHandler{actionType: ActionLogAlert, validate: func(p map[string]any) error {
		seen = p
		return nil
	}}
	exec := NewActionExecutor(testResolver(), zerolog.Nop(), time.Second, handler)
	ev := vehicleEvent(EventVehicleSpeedExceeded, nil, nil)

	result := exec.Execute(context.Background(), Action{ID: uuid.New(), Type: ActionLogAlert, Parameters: map[string]any{"message": "{vehicle.registration}"}}, &ev, nil)
	require.True(t, result.Success)
	assert.Equal(t, "AB-123-CD", seen["message"])
	assert.Equal(t, 1, handler.callCount())
}

func TestActionExecutor_Registered(t *testing.T) {
	exec := NewActionExecutor(testResolver(), zerolog.Nop(), 0,
		NewLogAlertHandler(zerolog.Nop()),
		NewCreateAlertHandler(&recordingAlerts{}),
	)
	assert.Equal(t, []ActionType{ActionCreateAlert, ActionLogAlert}, exec.Registered())
	assert.True(t, exec.Supports(ActionLogAlert))
	assert.False(t, exec.Supports(ActionCallWebhook))
}

func TestLogAlertHandler(t *testing.T) {
	h := NewLogAlertHandler(zerolog.Nop())
	ev := vehicleEvent(EventVehicleIgnitionOn, nil, nil)

	require.NoError(t, h.Validate(map[string]any{"message": "m", "level": "warn"}))
	assert.EqualError(t, h.Validate(map[string]any{"message": "m", "level": "loud"}), "Invalid level: loud")

	data, err := h.Execute(context.Background(), map[string]any{"message": "ignition on"}, &ev)
	require.NoError(t, err)
	assert.Equal(t, "ignition on", data["message"])
	assert.Equal(t, "info", data["level"])
}

type recordingSender struct {
	sent []string
	err  error
}

func (s *recordingSender) SendEmail(_ context.Context, to, subject, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to+"|"+subject)
	return nil
}

func TestSendEmailHandler(t *testing.T) {
	sender := &recordingSender{}
	h := NewSendEmailHandler(sender)
	ev := vehicleEvent(EventVehicleIgnitionOn, nil, nil)

	params := map[string]any{"to": "ops@fleet.test, boss@fleet.test", "subject": "Ignition", "body": "b"}
	require.NoError(t, h.Validate(params))

	_, err := h.Execute(context.Background(), params, &ev)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@fleet.test|Ignition", "boss@fleet.test|Ignition"}, sender.sent)

	assert.EqualError(t, h.Validate(map[string]any{"to": []any{"not-an-address"}}), "Invalid email address: not-an-address")
}

func TestSendEmailHandler_SenderError(t *testing.T) {
	h := NewSendEmailHandler(&recordingSender{err: errors.New("quota exceeded")})
	ev := vehicleEvent(EventVehicleIgnitionOn, nil, nil)

	_, err := h.Execute(context.Background(), map[string]any{"to": "a@b.c", "subject": "s", "body": "b"}, &ev)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestCallWebhookHandler(t *testing.T) {
	var gotBody map[string]any
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Plate")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	exec := NewActionExecutor(testResolver(), zerolog.Nop(), time.Second, NewCallWebhookHandler(server.Client()))
	ev := vehicleEvent(EventVehicleSpeedExceeded, map[string]any{"speed": float64(95)}, nil)

	result := exec.Execute(context.Background(), Action{ID: uuid.New(), Type: ActionCallWebhook, Parameters: map[string]any{
		"url":     server.URL + "/hooks",
		"headers": map[string]any{"X-Plate": "{vehicle.registration}"},
		"body":    map[string]any{"speed": "{event.speed}"},
	}}, &ev, nil)

	require.True(t, result.Success, result.Error)
	assert.Equal(t, http.StatusAccepted, result.Data["status_code"])
	assert.Equal(t, "AB-123-CD", gotHeader)
	assert.Equal(t, "95", gotBody["speed"])
}

func TestCallWebhookHandler_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	h := NewCallWebhookHandler(server.Client())
	ev := vehicleEvent(EventVehicleSpeedExceeded, nil, nil)

	_, err := h.Execute(context.Background(), map[string]any{"url": server.URL}, &ev)
	assert.ErrorContains(t, err, "502")
}

func TestCallWebhookHandler_Validate(t *testing.T) {
	h := NewCallWebhookHandler(nil)
	assert.NoError(t, h.Validate(map[string]any{"url": "https://example.test/x", "method": "put"}))
	assert.EqualError(t, h.Validate(map[string]any{"url": "ftp://example.test"}), "Invalid url: ftp://example.test")
	assert.EqualError(t, h.Validate(map[string]any{"url": "https://example.test", "method": "TRACE"}), "Invalid method: TRACE")
}
