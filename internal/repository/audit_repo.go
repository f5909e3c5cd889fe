package repository

import (
	"context"

	"hireloop/internal/models"

	"gorm.io/gorm"
)

// AuditRepository is append-only: there is no update or delete.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, e *models.ContractAuditEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *AuditRepository) ListByContract(ctx context.Context, contractID uint) ([]models.ContractAuditEvent, error) {
	var list []models.ContractAuditEvent
	err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).Order("created_at ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *AuditRepository) CountByType(ctx context.Context, contractID uint, eventType string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ContractAuditEvent{}).
		Where("contract_id = ? AND event_type = ?", contractID, eventType).
		Count(&n).Error
	return n, err
}
