package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Change actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// AuditLog records one change to a tenant-owned definition
type AuditLog struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index:idx_audit_logs_entity"`
	Actor    string    `json:"actor" gorm:"type:varchar(255);not null;default:'system'"`

	Action   string `json:"action" gorm:"type:varchar(20);not null"`                           // create, update, delete
	Entity   string `json:"entity" gorm:"type:varchar(50);not null;index:idx_audit_logs_entity"` // workflow
	EntityID string `json:"entity_id" gorm:"type:varchar(100);not null;index:idx_audit_logs_entity"`

	OldValue datatypes.JSON `json:"old_value,omitempty" gorm:"type:jsonb"`
	NewValue datatypes.JSON `json:"new_value,omitempty" gorm:"type:jsonb"`

	Description string    `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
