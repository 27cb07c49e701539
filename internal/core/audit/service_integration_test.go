//go:build integration

package audit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettrack/telematics-be/internal/shared/database/dbtest"
)

func TestMain(m *testing.M) {
	code := m.Run()
	dbtest.Terminate()
	os.Exit(code)
}

func TestService_History(t *testing.T) {
	db := dbtest.Open(t)
	ctx := WithActor(context.Background(), "dana@example.com")
	svc := NewService(db.GORM, zerolog.Nop())

	tenantID, workflowID := uuid.New(), uuid.NewString()
	require.NoError(t, svc.LogChange(ctx, tenantID, ActionCreate, "workflow", workflowID, nil, map[string]any{"name": "v1"}))
	require.NoError(t, svc.LogChange(ctx, tenantID, ActionUpdate, "workflow", workflowID, map[string]any{"name": "v1"}, map[string]any{"name": "v2"}))
	require.NoError(t, svc.LogChange(ctx, uuid.New(), ActionCreate, "workflow", workflowID, nil, nil))

	history, err := svc.GetEntityHistory(ctx, tenantID, "workflow", workflowID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "dana@example.com", history[0].Actor)
	assert.ElementsMatch(t, []string{ActionCreate, ActionUpdate}, []string{history[0].Action, history[1].Action})

	removed, err := svc.DeleteOldLogs(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}
