package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
)

// Payment tracks what the customer owes for one order.
type Payment struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Method    enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Status    enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Amount    decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	PaidAt    *time.Time          `gorm:"column:paid_at"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// VendorPayment is the vendor payable computed once per order.
type VendorPayment struct {
	ID               uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	VendorID         uuid.UUID                 `gorm:"column:vendor_id;type:uuid;not null;index"`
	OrderID          uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Amount           decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	CommissionRate   decimal.Decimal           `gorm:"column:commission_rate;type:numeric(5,2);not null"`
	CommissionAmount decimal.Decimal           `gorm:"column:commission_amount;type:numeric(12,2);not null"`
	NetAmount        decimal.Decimal           `gorm:"column:net_amount;type:numeric(12,2);not null"`
	PaymentStatus    enums.VendorPaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	ApprovedAt       *time.Time                `gorm:"column:approved_at"`
	PaidAt           *time.Time                `gorm:"column:paid_at"`
	CreatedAt        time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (v *VendorPayment) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}

// PaymentConfirmation records cash handed to the delivery agent.
type PaymentConfirmation struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	DeliveryID      uuid.UUID       `gorm:"column:delivery_id;type:uuid;not null"`
	PaymentReceived decimal.Decimal `gorm:"column:payment_received;type:numeric(12,2);not null"`
	PhotoKey        *string         `gorm:"column:photo_key"`
	Notes           *string         `gorm:"column:notes"`
	ConfirmedAt     time.Time       `gorm:"column:confirmed_at;not null"`
}

func (c *PaymentConfirmation) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// LedgerEvent records an immutable money movement tied to an order.
type LedgerEvent struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	BeneficiaryID *uuid.UUID            `gorm:"column:beneficiary_id;type:uuid"`
	ActorID       *uuid.UUID            `gorm:"column:actor_id;type:uuid"`
	Type          enums.LedgerEventType `gorm:"column:type;type:text;not null"`
	Amount        decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEvent) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}
