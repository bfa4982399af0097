package orders

import (
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
)

// transitions is the single source of truth for order status moves.
// assigned -> pending is the cancel-claim path.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusProcessing,
		enums.OrderStatusAssigned,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusAssigned,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusAssigned: {
		enums.OrderStatusPickedUp,
		enums.OrderStatusInTransit,
		enums.OrderStatusPending,
		enums.OrderStatusCancelled,
		enums.OrderStatusReturned,
	},
	enums.OrderStatusPickedUp: {
		enums.OrderStatusInTransit,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
		enums.OrderStatusReturned,
	},
	enums.OrderStatusInTransit: {
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
		enums.OrderStatusReturned,
	},
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EnsureTransition returns InvalidTransition when from -> to is not allowed.
func EnsureTransition(from, to enums.OrderStatus) error {
	if !CanTransition(from, to) {
		return pkgerrors.InvalidTransition(from.String(), to.String())
	}
	return nil
}
