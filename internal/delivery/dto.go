package delivery

import (
	"time"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/google/uuid"
)

// AssignInput is a push assignment request.
type AssignInput struct {
	OrderID    uuid.UUID
	DeliveryID uuid.UUID
	Notes      string
	PickupTime *time.Time
}

// ClaimResult reports a claim and, when it was approved, the assigned order.
type ClaimResult struct {
	Claim *models.DeliveryClaimRequest
	Order *models.Order
}
