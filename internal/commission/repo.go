package commission

import (
	"context"

	dbpkg "github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists vendor payables and reads the order and vendor rows
// they are computed from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.VendorPayment) error
	Find(ctx context.Context, id uuid.UUID) (*models.VendorPayment, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.VendorPayment, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.VendorPayment, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, status enums.VendorPaymentStatus) ([]models.VendorPayment, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Order(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Vendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
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

func (r *repository) Create(ctx context.Context, payment *models.VendorPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.VendorPayment, error) {
	var payment models.VendorPayment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.VendorPayment, error) {
	var payment models.VendorPayment
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.VendorPayment, error) {
	var payment models.VendorPayment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByVendor returns a vendor's payables, optionally filtered by status.
func (r *repository) ListByVendor(ctx context.Context, vendorID uuid.UUID, status enums.VendorPaymentStatus) ([]models.VendorPayment, error) {
	q := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID)
	if status != "" {
		q = q.Where("payment_status = ?", status)
	}
	var payments []models.VendorPayment
	if err := q.Order("created_at DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.VendorPayment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Order(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Vendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}
