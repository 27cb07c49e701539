//go:build integration

package fleet

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettrack/telematics-be/internal/core/email"
	"github.com/fleettrack/telematics-be/internal/core/events"
	"github.com/fleettrack/telematics-be/internal/core/jobs"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/services"
	"github.com/fleettrack/telematics-be/internal/shared/config"
	"github.com/fleettrack/telematics-be/internal/shared/database/dbtest"
)

func TestMain(m *testing.M) {
	code := m.Run()
	dbtest.Terminate()
	os.Exit(code)
}

func TestModule_EventRaisesAlert(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	tenantID, vehicleID := uuid.New(), uuid.New()
	_, err := db.ExecContext(ctx, `INSERT INTO tenants (id, name) VALUES ($1, 'Acme Haulage')`, tenantID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO vehicles (id, tenant_id, registration) VALUES ($1, $2, 'AB12 CDE')`, vehicleID, tenantID)
	require.NoError(t, err)

	module := NewModule(db.GORM, nil, Config{ActionTimeout: 5 * time.Second}, zerolog.Nop())

	wf, err := module.WorkflowService.CreateWorkflow(ctx, tenantID, services.WorkflowRequest{
		Name:     "Speeding",
		Triggers: []services.TriggerRequest{{EventType: string(workflow.EventVehicleSpeedExceeded)}},
		Conditions: []services.ConditionRequest{
			{Field: "event.speed", Operator: string(workflow.OpGreaterThan), Value: 100},
		},
		Actions: []services.ActionRequest{{
			Type:        string(workflow.ActionCreateAlert),
			TargetModel: "vehicle",
			Parameters: map[string]any{
				"title":    "Speeding {vehicle.registration}",
				"content":  "{vehicle.registration} at {event.speed} km/h",
				"severity": "critical",
			},
		}},
	})
	require.NoError(t, err)

	listener := module.NewListener(email.NewService(nil))
	subject := workflow.EntityRef{Type: "vehicle", ID: vehicleID.String()}

	slow := workflow.NewDomainEvent(workflow.EventVehicleSpeedExceeded, subject, map[string]any{"speed": float64(95)}, nil)
	require.NoError(t, listener.Handle(ctx, slow))

	fast := workflow.NewDomainEvent(workflow.EventVehicleSpeedExceeded, subject, map[string]any{"speed": float64(130)}, nil)
	require.NoError(t, listener.Handle(ctx, fast))

	alerts, err := module.AlertService.ListForEntity(ctx, tenantID, "vehicle", vehicleID.String(), 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Speeding AB12 CDE", alerts[0].Title)
	assert.Equal(t, "AB12 CDE at 130 km/h", alerts[0].Content)
	assert.Equal(t, "critical", alerts[0].Severity)

	executions, err := module.WorkflowService.ListExecutions(ctx, tenantID, wf.ID, 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, workflow.StatusCompleted, executions[0].Status)
	assert.Equal(t, fast.ID, executions[0].EventID)
	assert.Equal(t, 1, executions[0].ActionsCompleted)

	// events about unknown subjects are dropped without error
	unknown := workflow.NewDomainEvent(workflow.EventVehicleSpeedExceeded,
		workflow.EntityRef{Type: "vehicle", ID: uuid.NewString()}, map[string]any{"speed": float64(130)}, nil)
	assert.NoError(t, listener.Handle(ctx, unknown))
}

func TestBus_DatabaseDeliversThroughJobQueue(t *testing.T) {
	db := dbtest.Open(t)
	logger := zerolog.Nop()

	worker := jobs.DefaultWorkerConfig()
	worker.Concurrency = 1
	worker.PollInterval = 20 * time.Millisecond

	bus, err := OpenBus(BusOptions{Kind: config.BusDatabase, Worker: worker}, db.GORM, logger)
	require.NoError(t, err)
	require.NotNil(t, bus.Jobs())

	processor := &recordingProcessor{seen: map[uuid.UUID]bool{}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	event := workflow.NewDomainEvent(workflow.EventVehicleIgnitionOn,
		workflow.EntityRef{Type: "vehicle", ID: uuid.NewString()}, map[string]any{"ignition": true}, nil)
	require.NoError(t, bus.Publisher.Publish(ctx, event))

	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx, events.NewListener(processor, logger), nil) }()

	require.Eventually(t, func() bool { return processor.saw(event.ID) }, 10*time.Second, 50*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
