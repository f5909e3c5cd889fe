package models

import (
	"time"

	"gorm.io/datatypes"
)

// ContractAuditEvent is an append-only record of a payment lifecycle event.
type ContractAuditEvent struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	ContractID  uint              `gorm:"not null;index" json:"contract_id"`
	EventType   string            `gorm:"size:50;not null;index" json:"event_type"`
	ActorUserID *uint             `gorm:"index" json:"actor_user_id,omitempty"` // nil for webhook and scheduler events
	Details     datatypes.JSONMap `json:"details"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}

func (ContractAuditEvent) TableName() string {
	return "contract_audit_events"
}
