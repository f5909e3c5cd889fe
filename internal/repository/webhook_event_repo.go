package repository

import (
	"context"
	"errors"
	"time"

	"hireloop/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Seen reports whether a gateway event id has already been processed.
func (r *WebhookEventRepository) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	var e models.ProcessedWebhookEvent
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// MarkProcessed records the event; a second insert of the same id is ignored.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, eventID, eventType, outcome string) error {
	if eventID == "" {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ProcessedWebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		Outcome:     outcome,
		ProcessedAt: time.Now(),
	}).Error
}
