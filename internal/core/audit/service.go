package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type actorKey struct{}

// WithActor attaches the identity performing a change to ctx
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(actor))
}

// ActorFrom returns the actor stored by WithActor, or "system"
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}

// Service provides audit logging functionality
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Log creates a new audit log entry
func (s *Service) Log(ctx context.Context, entry *AuditLog) error {
	if entry.Actor == "" {
		entry.Actor = ActorFrom(ctx)
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// LogChange records a change to entity. oldValue or newValue may be nil.
// A value that cannot be serialized is left out of the entry.
func (s *Service) LogChange(ctx context.Context, tenantID uuid.UUID, action, entity, entityID string, oldValue, newValue any) error {
	oldJSON, err := toJSON(oldValue)
	if err != nil {
		s.logger.Warn().Err(err).Str("entity_id", entityID).Msg("failed to serialize old value")
	}
	newJSON, err := toJSON(newValue)
	if err != nil {
		s.logger.Warn().Err(err).Str("entity_id", entityID).Msg("failed to serialize new value")
	}

	return s.Log(ctx, &AuditLog{
		TenantID: tenantID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		OldValue: oldJSON,
		NewValue: newJSON,
	})
}

// GetEntityHistory returns the changes of one entity, newest first
func (s *Service) GetEntityHistory(ctx context.Context, tenantID uuid.UUID, entity, entityID string, limit int) ([]AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var logs []AuditLog
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND entity = ? AND entity_id = ?", tenantID, entity, entityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get entity history: %w", err)
	}
	return logs, nil
}

// DeleteOldLogs deletes audit logs created before the cutoff
func (s *Service) DeleteOldLogs(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old audit logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func toJSON(value any) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(bytes), nil
}
