package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
)

// Product is the slice of the catalog the fulfillment core reads: owner and stock.
type Product struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VendorID  uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Stock     int             `gorm:"column:stock;not null;default:0"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Vendor owns products and receives payouts.
type Vendor struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Name           string              `gorm:"column:name;not null"`
	Tier           enums.VendorTier    `gorm:"column:tier;type:text;not null;default:'basic'"`
	CommissionRate decimal.NullDecimal `gorm:"column:commission_rate;type:numeric(5,2)"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (v *Vendor) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}

// Zone is a delivery partition with its own fee and ETA.
type Zone struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name           string          `gorm:"column:name;not null"`
	DeliveryFee    decimal.Decimal `gorm:"column:delivery_fee;type:numeric(12,2);not null;default:0"`
	EstimatedHours int             `gorm:"column:estimated_hours;not null;default:24"`
}

func (Zone) TableName() string { return "delivery_zones" }

func (z *Zone) BeforeCreate(*gorm.DB) error {
	assignID(&z.ID)
	return nil
}

// Coupon is resolved once per checkout against the full cart subtotal.
type Coupon struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code        string              `gorm:"column:code;not null;uniqueIndex"`
	Type        enums.CouponType    `gorm:"column:type;type:text;not null"`
	Value       decimal.Decimal     `gorm:"column:value;type:numeric(12,2);not null"`
	MinAmount   decimal.Decimal     `gorm:"column:min_amount;type:numeric(12,2);not null;default:0"`
	MaxDiscount decimal.NullDecimal `gorm:"column:max_discount;type:numeric(12,2)"`
	IsActive    bool                `gorm:"column:is_active;not null"`
	StartsAt    *time.Time          `gorm:"column:starts_at"`
	EndsAt      *time.Time          `gorm:"column:ends_at"`
	UsageLimit  *int                `gorm:"column:usage_limit"`
	UsedCount   int                 `gorm:"column:used_count;not null;default:0"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
