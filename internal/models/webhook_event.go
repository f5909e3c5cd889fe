package models

import "time"

// ProcessedWebhookEvent remembers gateway event ids that were already handled.
type ProcessedWebhookEvent struct {
	EventID     string    `gorm:"primaryKey;size:255" json:"event_id"`
	EventType   string    `gorm:"size:100;not null" json:"event_type"`
	Outcome     string    `gorm:"size:50;not null" json:"outcome"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

func (ProcessedWebhookEvent) TableName() string {
	return "processed_webhook_events"
}
