package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleettrack/telematics-be/internal/modules/fleet/models"
)

// AlertRepo persists alerts raised by workflows
type AlertRepo interface {
	Create(ctx context.Context, alert *models.Alert) error
	ListByEntity(ctx context.Context, tenantID uuid.UUID, entityType, entityID string, limit int) ([]models.Alert, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type alertRepo struct {
	db *gorm.DB
}

func NewAlertRepo(db *gorm.DB) AlertRepo {
	return &alertRepo{db: db}
}

func (r *alertRepo) Create(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *alertRepo) ListByEntity(ctx context.Context, tenantID uuid.UUID, entityType, entityID string, limit int) ([]models.Alert, error) {
	var alerts []models.Alert
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND alertable_type = ? AND alertable_id = ?", tenantID, entityType, entityID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&alerts).Error
	return alerts, err
}

func (r *alertRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.Alert{})
	return res.RowsAffected, res.Error
}
