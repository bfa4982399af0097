package checkout

import (
	"context"
	"strings"

	dbpkg "github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes the coupon queries checkout needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockCouponByCode reads the coupon FOR UPDATE so the usage limit holds
// under concurrent checkouts. Codes compare case-insensitively.
func (r *repository) LockCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error
}
