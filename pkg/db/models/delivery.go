package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
)

// DeliveryPersonnel is the delivery profile of one user account.
type DeliveryPersonnel struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	ZoneID          *uuid.UUID `gorm:"column:zone_id;type:uuid;index"`
	IsAvailable     bool       `gorm:"column:is_available;not null"`
	IsVerified      bool       `gorm:"column:is_verified;not null;default:false"`
	Rating          float64    `gorm:"column:rating;not null;default:0"`
	TotalDeliveries int        `gorm:"column:total_deliveries;not null;default:0"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (DeliveryPersonnel) TableName() string { return "delivery_personnel" }

func (p *DeliveryPersonnel) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// DeliveryAssignment binds an order to a delivery agent.
type DeliveryAssignment struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	DeliveryID  uuid.UUID              `gorm:"column:delivery_id;type:uuid;not null;index"`
	AssignedBy  uuid.UUID              `gorm:"column:assigned_by;type:uuid;not null"`
	Status      enums.AssignmentStatus `gorm:"column:status;type:text;not null;default:'assigned'"`
	Notes       *string                `gorm:"column:notes"`
	AssignedAt  time.Time              `gorm:"column:assigned_at;not null"`
	CompletedAt *time.Time             `gorm:"column:completed_at"`
	CancelledAt *time.Time             `gorm:"column:cancelled_at"`
}

func (a *DeliveryAssignment) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// DeliveryClaimRequest is an agent's pull request for an unassigned order.
type DeliveryClaimRequest struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	DeliveryID  uuid.UUID         `gorm:"column:delivery_id;type:uuid;not null;index"`
	ClaimStatus enums.ClaimStatus `gorm:"column:claim_status;type:text;not null;default:'pending'"`
	ClaimedAt   time.Time         `gorm:"column:claimed_at;not null"`
	ApprovedAt  *time.Time        `gorm:"column:approved_at"`
	DecidedBy   *uuid.UUID        `gorm:"column:decided_by;type:uuid"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *DeliveryClaimRequest) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// DeliveryTracking is one append-only entry of an order's status history.
type DeliveryTracking struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.TrackingStatus `gorm:"column:status;type:text;not null"`
	Notes     *string              `gorm:"column:notes"`
	ActorID   *uuid.UUID           `gorm:"column:actor_id;type:uuid"`
	CreatedAt time.Time            `gorm:"column:created_at;not null"`
}

func (DeliveryTracking) TableName() string { return "delivery_tracking" }

func (t *DeliveryTracking) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
