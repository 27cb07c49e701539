package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/fleettrack/telematics-be/internal/core/workflow"
)

// Alert is a notification raised against a fleet entity
type Alert struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID      uuid.UUID      `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Title         string         `json:"title" gorm:"type:varchar(255);not null"`
	Content       string         `json:"content" gorm:"type:text;not null"`
	Type          string         `json:"type" gorm:"type:varchar(50);not null;default:'workflow'"`
	Severity      string         `json:"severity" gorm:"type:varchar(20);not null;index"`
	AlertableType string         `json:"alertable_type" gorm:"type:varchar(50);not null;index:idx_alerts_alertable"`
	AlertableID   string         `json:"alertable_id" gorm:"type:varchar(100);not null;index:idx_alerts_alertable"`
	Metadata      datatypes.JSON `json:"metadata" gorm:"type:jsonb;default:'{}'"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty" gorm:"index"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

func (Alert) TableName() string {
	return "alerts"
}

// AlertFromAttributes builds an alert row from create_alert attributes
func AlertFromAttributes(attrs workflow.AlertAttributes) (*Alert, error) {
	metadata, err := encodeJSON(attrs.Metadata, "{}")
	if err != nil {
		return nil, err
	}
	return &Alert{
		ID:            uuid.New(),
		TenantID:      attrs.TenantID,
		Title:         attrs.Title,
		Content:       attrs.Content,
		Type:          attrs.Type,
		Severity:      string(attrs.Severity),
		AlertableType: attrs.AlertableType,
		AlertableID:   attrs.AlertableID,
		Metadata:      metadata,
		ExpiresAt:     attrs.ExpiresAt,
	}, nil
}
