//go:build integration

package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/models"
	"github.com/fleettrack/telematics-be/internal/shared/database"
	"github.com/fleettrack/telematics-be/internal/shared/database/dbtest"
)

func TestMain(m *testing.M) {
	code := m.Run()
	dbtest.Terminate()
	os.Exit(code)
}

type fixture struct {
	db       *database.DB
	tenantID uuid.UUID
	driverID uuid.UUID
	vehicle  uuid.UUID
}

func seed(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := fixture{db: db, tenantID: uuid.New(), driverID: uuid.New(), vehicle: uuid.New()}

	exec := func(query string, args ...any) {
		_, err := db.ExecContext(context.Background(), query, args...)
		require.NoError(t, err)
	}
	exec(`INSERT INTO tenants (id, name, timezone) VALUES ($1, 'Acme Haulage', 'Europe/London')`, f.tenantID)
	exec(`INSERT INTO drivers (id, tenant_id, name, email) VALUES ($1, $2, 'Dana Kent', 'dana@example.com')`, f.driverID, f.tenantID)
	exec(`INSERT INTO vehicles (id, tenant_id, driver_id, registration, odometer_km, attributes)
		VALUES ($1, $2, $3, 'AB12 CDE', 120500.5, '{"fuel_type":"diesel","limits":{"speed":90}}')`, f.vehicle, f.tenantID, f.driverID)
	return f
}

func sampleWorkflow(tenantID uuid.UUID, name string, active bool, eventType workflow.EventType) *models.Workflow {
	return &models.Workflow{
		TenantID: tenantID,
		Name:     name,
		IsActive: active,
		Metadata: datatypes.JSON(`{}`),
		Triggers: []models.WorkflowTrigger{{EventType: string(eventType), Filter: datatypes.JSON(`{}`)}},
		Conditions: []models.WorkflowCondition{
			{Field: "event.speed", Operator: string(workflow.OpGreaterThan), Value: datatypes.JSON(`90`), LogicalOperator: "and", Position: 1},
			{Field: "vehicle.attributes.fuel_type", Operator: string(workflow.OpEquals), Value: datatypes.JSON(`"diesel"`), LogicalOperator: "and", Position: 0},
		},
		Actions: []models.WorkflowAction{
			{ActionType: string(workflow.ActionLogAlert), TargetModel: "vehicle", Parameters: datatypes.JSON(`{"message":"second"}`), Position: 1},
			{ActionType: string(workflow.ActionLogAlert), TargetModel: "vehicle", Parameters: datatypes.JSON(`{"message":"first"}`), Position: 0},
		},
	}
}

func TestWorkflowRepo_Lifecycle(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	repo := NewWorkflowRepo(f.db.GORM)

	wf := sampleWorkflow(f.tenantID, "Speeding", true, workflow.EventVehicleSpeedExceeded)
	require.NoError(t, repo.Create(ctx, wf))
	require.NotEqual(t, uuid.Nil, wf.ID)

	got, err := repo.FindByID(ctx, f.tenantID, wf.ID)
	require.NoError(t, err)
	require.Len(t, got.Conditions, 2)
	assert.Equal(t, "vehicle.attributes.fuel_type", got.Conditions[0].Field)
	require.Len(t, got.Actions, 2)
	assert.JSONEq(t, `{"message":"first"}`, string(got.Actions[0].Parameters))

	_, err = repo.FindByID(ctx, uuid.New(), wf.ID)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	got.Name = "Speeding v2"
	got.IsActive = false
	got.Triggers = []models.WorkflowTrigger{{EventType: string(workflow.EventVehicleIgnitionOn), Filter: datatypes.JSON(`{}`)}}
	got.Conditions = nil
	require.NoError(t, repo.Replace(ctx, got))

	replaced, err := repo.FindByID(ctx, f.tenantID, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "Speeding v2", replaced.Name)
	assert.False(t, replaced.IsActive)
	assert.Empty(t, replaced.Conditions)
	require.Len(t, replaced.Triggers, 1)
	assert.Equal(t, string(workflow.EventVehicleIgnitionOn), replaced.Triggers[0].EventType)

	missing := sampleWorkflow(f.tenantID, "ghost", true, workflow.EventVehicleIgnitionOn)
	missing.ID = uuid.New()
	assert.ErrorIs(t, repo.Replace(ctx, missing), ErrWorkflowNotFound)

	list, err := repo.ListByTenant(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, f.tenantID, wf.ID))
	assert.ErrorIs(t, repo.Delete(ctx, f.tenantID, wf.ID), ErrWorkflowNotFound)
	_, err = repo.FindByID(ctx, f.tenantID, wf.ID)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflowRepo_FindActiveForEvent(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	repo := NewWorkflowRepo(f.db.GORM)

	other := uuid.New()
	_, err := f.db.ExecContext(ctx, `INSERT INTO tenants (id, name) VALUES ($1, 'Other')`, other)
	require.NoError(t, err)

	matching := sampleWorkflow(f.tenantID, "match", true, workflow.EventVehicleSpeedExceeded)
	inactive := sampleWorkflow(f.tenantID, "inactive", false, workflow.EventVehicleSpeedExceeded)
	wrongEvent := sampleWorkflow(f.tenantID, "wrong event", true, workflow.EventVehicleIgnitionOn)
	otherTenant := sampleWorkflow(other, "other tenant", true, workflow.EventVehicleSpeedExceeded)
	deleted := sampleWorkflow(f.tenantID, "deleted", true, workflow.EventVehicleSpeedExceeded)
	for _, wf := range []*models.Workflow{matching, inactive, wrongEvent, otherTenant, deleted} {
		require.NoError(t, repo.Create(ctx, wf))
	}
	require.NoError(t, repo.Delete(ctx, f.tenantID, deleted.ID))

	found, err := repo.FindActiveForEvent(ctx, f.tenantID, workflow.EventVehicleSpeedExceeded)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, matching.ID, found[0].ID)
	assert.Len(t, found[0].Conditions, 2)
	assert.Equal(t, "first", found[0].Actions[0].Parameters["message"])
}

func TestExecutionRepo_Lifecycle(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	workflows := NewWorkflowRepo(f.db.GORM)
	repo := NewExecutionRepo(f.db.GORM)

	row := sampleWorkflow(f.tenantID, "Speeding", true, workflow.EventVehicleSpeedExceeded)
	require.NoError(t, workflows.Create(ctx, row))
	wf := row.ToDomain()

	event := workflow.NewDomainEvent(workflow.EventVehicleSpeedExceeded,
		workflow.EntityRef{Type: "vehicle", ID: f.vehicle.String(), TenantID: f.tenantID},
		map[string]any{"speed": 120}, nil)
	now := time.Now().UTC().Truncate(time.Millisecond)

	x := workflow.NewExecution(&wf, &event, now)
	require.NoError(t, repo.CreateExecution(ctx, x))

	require.NoError(t, x.Start(now))
	require.NoError(t, repo.UpdateExecution(ctx, x))
	require.NoError(t, x.Append(workflow.LogEntry{ActionID: uuid.New(), ActionType: workflow.ActionLogAlert, Success: true, Message: "Action completed"}))
	require.NoError(t, x.Complete(now.Add(250*time.Millisecond)))
	require.NoError(t, repo.UpdateExecution(ctx, x))

	// a finished execution is never rewritten
	assert.ErrorIs(t, repo.UpdateExecution(ctx, x), workflow.ErrExecutionTerminal)

	stored, err := repo.FindByID(ctx, f.tenantID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.ActionsCompleted)
	require.Len(t, stored.Log, 1)
	assert.Equal(t, int64(250), stored.DurationMs())

	_, err = repo.FindByID(ctx, uuid.New(), x.ID)
	assert.ErrorIs(t, err, ErrExecutionNotFound)

	ghost := workflow.NewExecution(&wf, &event, now)
	assert.ErrorIs(t, repo.UpdateExecution(ctx, ghost), ErrExecutionNotFound)

	list, err := repo.ListByWorkflow(ctx, f.tenantID, wf.ID, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	purged, err := repo.PurgeFinishedBefore(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestAlertRepo(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	repo := NewAlertRepo(f.db.GORM)

	past := time.Now().Add(-time.Hour)
	for _, attrs := range []workflow.AlertAttributes{
		{Title: "Speeding", Content: "120 km/h", Type: "workflow", Severity: workflow.SeverityCritical, AlertableType: "vehicle", AlertableID: f.vehicle.String(), TenantID: f.tenantID},
		{Title: "Stale", Content: "old", Type: "workflow", Severity: workflow.SeverityInfo, AlertableType: "vehicle", AlertableID: f.vehicle.String(), TenantID: f.tenantID, ExpiresAt: &past},
	} {
		alert, err := models.AlertFromAttributes(attrs)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, alert))
	}

	alerts, err := repo.ListByEntity(ctx, f.tenantID, "vehicle", f.vehicle.String(), 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)

	none, err := repo.ListByEntity(ctx, uuid.New(), "vehicle", f.vehicle.String(), 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	purged, err := repo.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestEntityAccessor_Postgres(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	accessor := NewEntityAccessor(f.db.GORM)
	ref := workflow.EntityRef{Type: "vehicle", ID: f.vehicle.String(), TenantID: f.tenantID}

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"registration", "AB12 CDE", true},
		{"odometer_km", 120500.5, true},
		{"attributes.fuel_type", "diesel", true},
		{"attributes.limits.speed", float64(90), true},
		{"driver.name", "Dana Kent", true},
		{"driver.email", "dana@example.com", true},
		{"tenant.timezone", "Europe/London", true},
		{"group.name", nil, false},
		{"color", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found, err := accessor.Property(ctx, ref, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	_, found, err := accessor.Property(ctx, workflow.EntityRef{Type: "vehicle", ID: f.vehicle.String(), TenantID: uuid.New()}, "registration")
	require.NoError(t, err)
	assert.False(t, found, "rows of another tenant are invisible")

	_, found, err = accessor.Property(ctx, workflow.EntityRef{Type: "vehicle", ID: "not-a-uuid", TenantID: f.tenantID}, "registration")
	require.NoError(t, err)
	assert.False(t, found)
}
