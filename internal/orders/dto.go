package orders

import (
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	"github.com/angelmondragon/fulfillment-engine/pkg/storage"
	"github.com/google/uuid"
)

// DeliveryStatusInput carries a courier status report.
type DeliveryStatusInput struct {
	OrderID uuid.UUID
	Status  enums.DeliveryStatus
	Notes   string
	Photo   *storage.Photo
}
