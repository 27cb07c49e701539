package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/models"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/repositories"
)

// AlertService stores alerts raised by create_alert actions
type AlertService struct {
	alertRepo repositories.AlertRepo
	timeout   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

func NewAlertService(alertRepo repositories.AlertRepo, timeout time.Duration, logger zerolog.Logger) *AlertService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AlertService{
		alertRepo: alertRepo,
		timeout:   timeout,
		now:       time.Now,
		logger:    logger,
	}
}

var _ workflow.AlertCreator = (*AlertService)(nil)

// CreateAlert persists the alert and returns its id
func (s *AlertService) CreateAlert(ctx context.Context, attrs workflow.AlertAttributes) (uuid.UUID, error) {
	if attrs.TenantID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("alert for %s:%s has no tenant", attrs.AlertableType, attrs.AlertableID)
	}
	if attrs.ExpiresAt != nil && !attrs.ExpiresAt.After(s.now()) {
		return uuid.Nil, fmt.Errorf("%w: %s is in the past", workflow.ErrInvalidExpiry, attrs.ExpiresAt.Format(time.RFC3339))
	}

	alert, err := models.AlertFromAttributes(attrs)
	if err != nil {
		return uuid.Nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.alertRepo.Create(ctx, alert); err != nil {
		return uuid.Nil, fmt.Errorf("failed to store alert: %w", err)
	}

	s.logger.Info().
		Str("tenant_id", attrs.TenantID.String()).
		Str("alert_id", alert.ID.String()).
		Str("severity", alert.Severity).
		Str("alertable", attrs.AlertableType+":"+attrs.AlertableID).
		Msg("alert created")

	return alert.ID, nil
}

// ListForEntity returns the newest alerts raised against one entity
func (s *AlertService) ListForEntity(ctx context.Context, tenantID uuid.UUID, entityType, entityID string, limit int) ([]models.Alert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.alertRepo.ListByEntity(ctx, tenantID, entityType, entityID, limit)
}
