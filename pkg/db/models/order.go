package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
)

// Order is the per-vendor order produced by splitting one checkout.
type Order struct {
	ID                    uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID            uuid.UUID                `gorm:"column:customer_id;type:uuid;not null;index"`
	VendorID              uuid.UUID                `gorm:"column:vendor_id;type:uuid;not null;index"`
	SplitGroupID          uuid.UUID                `gorm:"column:split_group_id;type:uuid;not null;index"`
	AddressID             *uuid.UUID               `gorm:"column:address_id;type:uuid"`
	DeliveryZoneID        *uuid.UUID               `gorm:"column:delivery_zone_id;type:uuid;index"`
	DeliveryID            *uuid.UUID               `gorm:"column:delivery_id;type:uuid;index"`
	CouponID              *uuid.UUID               `gorm:"column:coupon_id;type:uuid"`
	Status                enums.OrderStatus        `gorm:"column:status;type:text;not null;default:'pending'"`
	ConfirmationStatus    enums.ConfirmationStatus `gorm:"column:confirmation_status;type:text;not null;default:'pending'"`
	PaymentMethod         enums.PaymentMethod      `gorm:"column:payment_method;type:text;not null"`
	Subtotal              decimal.Decimal          `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount              decimal.Decimal          `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	DeliveryFee           decimal.Decimal          `gorm:"column:delivery_fee;type:numeric(12,2);not null;default:0"`
	Total                 decimal.Decimal          `gorm:"column:total;type:numeric(12,2);not null"`
	Notes                 *string                  `gorm:"column:notes"`
	PlacedAt              time.Time                `gorm:"column:placed_at;not null"`
	EstimatedDeliveryTime *time.Time               `gorm:"column:estimated_delivery_time"`
	ActualDeliveryTime    *time.Time               `gorm:"column:actual_delivery_time"`
	CancelledAt           *time.Time               `gorm:"column:cancelled_at"`
	StockReleasedAt       *time.Time               `gorm:"column:stock_released_at"`
	Items                 []OrderItem              `gorm:"foreignKey:OrderID"`
	CreatedAt             time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderItem is a frozen line of an order.
type OrderItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Qty        int             `gorm:"column:qty;not null"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	FinalPrice decimal.Decimal `gorm:"column:final_price;type:numeric(12,2);not null"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
