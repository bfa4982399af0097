package enums

// OrderStatus is the lifecycle state of a single vendor order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusAssigned   OrderStatus = "assigned"
	OrderStatusPickedUp   OrderStatus = "picked_up"
	OrderStatusInTransit  OrderStatus = "in_transit"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusAssigned,
	OrderStatusPickedUp,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
}

// String implements fmt.Stringer.
func (v OrderStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known OrderStatus.
func (v OrderStatus) IsValid() bool {
	return contains(validOrderStatuses, v)
}

// ParseOrderStatus converts raw input into a OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse(validOrderStatuses, value, "order status")
}

// IsTerminal reports whether no further transition is possible.
func (v OrderStatus) IsTerminal() bool {
	return v == OrderStatusDelivered || v == OrderStatusCancelled || v == OrderStatusReturned
}

// RequiresCourier reports whether an order in this state must be bound to a
// delivery agent.
func (v OrderStatus) RequiresCourier() bool {
	switch v {
	case OrderStatusAssigned, OrderStatusPickedUp, OrderStatusInTransit, OrderStatusDelivered, OrderStatusReturned:
		return true
	}
	return false
}
