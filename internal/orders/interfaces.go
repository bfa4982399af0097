package orders

import (
	"context"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders and their payment rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListBySplitGroup(ctx context.Context, splitGroupID uuid.UUID) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	UpdatePayment(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}

// Courier is the delivery side of the lifecycle: agent lookups plus the
// assignment bookkeeping tied to cancel, return and delivery. Every call
// joins the caller's transaction.
type Courier interface {
	AgentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.DeliveryPersonnel, error)
	AgentByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.DeliveryPersonnel, error)
	Release(ctx context.Context, tx *gorm.DB, order *models.Order, actorID uuid.UUID) error
	Complete(ctx context.Context, tx *gorm.DB, order *models.Order, actorID uuid.UUID) error
}

// PayableApprover releases the vendor payable once a prepaid order has been
// delivered. It joins the caller's transaction.
type PayableApprover interface {
	ApproveForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// StockReleaser returns units to the catalog.
type StockReleaser interface {
	IncrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// VendorDirectory resolves the account behind a vendor for notifications.
type VendorDirectory interface {
	Vendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type transitionRecorder interface {
	ObserveTransition(from, to string)
}
