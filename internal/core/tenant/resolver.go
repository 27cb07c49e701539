package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleettrack/telematics-be/internal/core/workflow"
)

// entityTables maps an entity type to the table holding its rows.
// Every table except tenants carries a tenant_id column.
var entityTables = map[string]string{
	"tenant":   "tenants",
	"vehicle":  "vehicles",
	"device":   "devices",
	"driver":   "drivers",
	"geofence": "geofences",
	"group":    "vehicle_groups",
}

// EntityTable returns the table name for an entity type
func EntityTable(entityType string) (string, bool) {
	table, ok := entityTables[entityType]
	return table, ok
}

// ValidID reports whether id can key an entity row. Entity tables use
// uuid primary keys.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Resolver determines the owning tenant of an event subject
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// TenantOf looks up tenant_id on the subject's row. A tenant subject resolves
// to itself once its row is confirmed to exist.
func (r *Resolver) TenantOf(ctx context.Context, ref workflow.EntityRef) (uuid.UUID, error) {
	table, ok := EntityTable(ref.Type)
	if !ok || !ValidID(ref.ID) {
		return uuid.Nil, fmt.Errorf("%w: %s", workflow.ErrTenantNotFound, ref.String())
	}

	column := "tenant_id"
	if ref.Type == "tenant" {
		column = "id"
	}

	var row struct {
		TenantID uuid.UUID
	}
	err := r.db.WithContext(ctx).
		Table(table).
		Select(column+" AS tenant_id").
		Where("id = ?", ref.ID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, fmt.Errorf("%w: %s", workflow.ErrTenantNotFound, ref.String())
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve tenant of %s: %w", ref.String(), err)
	}
	if row.TenantID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s", workflow.ErrTenantNotFound, ref.String())
	}
	return row.TenantID, nil
}

// Static resolves tenants from a fixed map keyed by "type:id".
// Used by the in-memory bus and tests.
type Static map[string]uuid.UUID

func (s Static) TenantOf(_ context.Context, ref workflow.EntityRef) (uuid.UUID, error) {
	if id, ok := s[ref.String()]; ok {
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("%w: %s", workflow.ErrTenantNotFound, ref.String())
}
