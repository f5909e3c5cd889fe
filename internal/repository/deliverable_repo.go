package repository

import (
	"context"

	"hireloop/internal/models"

	"gorm.io/gorm"
)

type DeliverableRepository struct {
	db *gorm.DB
}

func NewDeliverableRepository(db *gorm.DB) *DeliverableRepository {
	return &DeliverableRepository{db: db}
}

func (r *DeliverableRepository) Create(ctx context.Context, d *models.Deliverable) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DeliverableRepository) ListByContract(ctx context.Context, contractID uint) ([]models.Deliverable, error) {
	var list []models.Deliverable
	err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).Order("created_at DESC").Find(&list).Error
	return list, err
}
