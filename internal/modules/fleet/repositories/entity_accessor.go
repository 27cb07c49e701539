package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleettrack/telematics-be/internal/core/tenant"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
)

// rowLoader fetches one entity row as a column map. tenantID scopes the
// lookup unless it is uuid.Nil.
type rowLoader func(ctx context.Context, table, id string, tenantID uuid.UUID) (map[string]any, bool, error)

// EntityAccessor reads entity properties for variable resolution. The first
// path segment is a column of the subject row or the name of a related entity
// reached through its <name>_id column. Keys inside a json column are
// addressed below the column name, e.g. attributes.fuel_type.
type EntityAccessor struct {
	load rowLoader
}

func NewEntityAccessor(db *gorm.DB) *EntityAccessor {
	return &EntityAccessor{load: gormRowLoader(db)}
}

func gormRowLoader(db *gorm.DB) rowLoader {
	return func(ctx context.Context, table, id string, tenantID uuid.UUID) (map[string]any, bool, error) {
		if !tenant.ValidID(id) {
			return nil, false, nil
		}
		row := map[string]any{}
		query := db.WithContext(ctx).Table(table).Where("id = ?", id)
		if tenantID != uuid.Nil && table != "tenants" {
			query = query.Where("tenant_id = ?", tenantID)
		}
		err := query.Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to load %s %s: %w", table, id, err)
		}
		return row, true, nil
	}
}

func (a *EntityAccessor) Property(ctx context.Context, ref workflow.EntityRef, path string) (any, bool, error) {
	table, ok := tenant.EntityTable(ref.Type)
	if !ok || path == "" {
		return nil, false, nil
	}
	row, found, err := a.load(ctx, table, ref.ID, ref.TenantID)
	if err != nil || !found {
		return nil, false, err
	}
	return a.walk(ctx, ref.TenantID, row, strings.Split(path, "."), 0)
}

// maxRelationDepth bounds relation hops such as vehicle.driver.group
const maxRelationDepth = 3

func (a *EntityAccessor) walk(ctx context.Context, tenantID uuid.UUID, row map[string]any, segments []string, depth int) (any, bool, error) {
	head, rest := segments[0], segments[1:]

	if value, ok := row[head]; ok {
		v, found := workflow.LookupPath(map[string]any{head: normalizeColumn(value)}, segments)
		return v, found, nil
	}

	table, ok := tenant.EntityTable(head)
	if !ok || depth >= maxRelationDepth {
		return nil, false, nil
	}
	foreignKey := head + "_id"
	if head == "tenant" {
		foreignKey = "tenant_id"
	}
	relatedID := normalizeColumn(row[foreignKey])
	if relatedID == nil || relatedID == "" {
		return nil, false, nil
	}

	related, found, err := a.load(ctx, table, workflow.Stringify(relatedID), tenantID)
	if err != nil || !found {
		return nil, false, err
	}
	if len(rest) == 0 {
		return related, true, nil
	}
	return a.walk(ctx, tenantID, related, rest, depth+1)
}

// normalizeColumn converts driver values into the shapes the evaluator
// compares: json columns are decoded, byte slices become strings.
func normalizeColumn(v any) any {
	switch val := v.(type) {
	case []byte:
		return decodeIfJSON(string(val))
	case string:
		return decodeIfJSON(val)
	case [16]byte:
		return uuid.UUID(val).String()
	}
	return v
}

func decodeIfJSON(s string) any {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 || !(trimmed[0] == '{' || trimmed[0] == '[') {
		return s
	}
	var out any
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return s
	}
	return out
}
