//go:build integration

// Package dbtest starts a migrated PostgreSQL container for integration tests
package dbtest

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/fleettrack/telematics-be/internal/shared/database"
)

var (
	once      sync.Once
	container *postgres.PostgresContainer
	connStr   string
	startErr  error
)

// tables are truncated between tests, children first
var tables = []string{
	"jobs", "audit_logs", "alerts", "workflow_executions", "workflow_actions", "workflow_conditions",
	"workflow_triggers", "workflows", "devices", "vehicles", "drivers", "geofences",
	"vehicle_groups", "tenants",
}

// Open returns a connection to a freshly truncated, migrated database. The
// container is shared by every test in the package; call Terminate from
// TestMain.
func Open(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	once.Do(func() {
		container, startErr = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("fleet_test"),
			postgres.WithUsername("fleet"),
			postgres.WithPassword("fleet"),
			postgres.BasicWaitStrategies(),
		)
		if startErr != nil {
			return
		}
		connStr, startErr = container.ConnectionString(ctx, "sslmode=disable")
		if startErr != nil {
			return
		}
		startErr = migrateUp(connStr)
	})
	require.NoError(t, startErr)

	db, err := database.NewDB(connStr, database.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range tables {
		_, err := db.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		require.NoError(t, err)
	}
	return db
}

// Terminate stops the shared container
func Terminate() {
	if container != nil {
		_ = container.Terminate(context.Background())
	}
}

func migrateUp(connStr string) error {
	db, err := database.NewDB(connStr, database.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{MigrationsTable: "schema_migrations_fleet"})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir(), "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "migrations", "fleet")
}
