package payments

import (
	"context"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository stores cash payment confirmations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateConfirmation(ctx context.Context, confirmation *models.PaymentConfirmation) error
	FindConfirmation(ctx context.Context, orderID uuid.UUID) (*models.PaymentConfirmation, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateConfirmation(ctx context.Context, confirmation *models.PaymentConfirmation) error {
	return r.db.WithContext(ctx).Create(confirmation).Error
}

func (r *repository) FindConfirmation(ctx context.Context, orderID uuid.UUID) (*models.PaymentConfirmation, error) {
	var confirmation models.PaymentConfirmation
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&confirmation).Error; err != nil {
		return nil, err
	}
	return &confirmation, nil
}
