package enums

// DeliveryStatus is a status a delivery agent may report for an order.
type DeliveryStatus string

const (
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusReturned  DeliveryStatus = "returned"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPickedUp,
	DeliveryStatusInTransit,
	DeliveryStatusDelivered,
	DeliveryStatusFailed,
	DeliveryStatusReturned,
}

// String implements fmt.Stringer.
func (v DeliveryStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (v DeliveryStatus) IsValid() bool {
	return contains(validDeliveryStatuses, v)
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	return parse(validDeliveryStatuses, value, "delivery status")
}

// OrderStatus maps the reported status onto the order state it produces.
// Failed attempts do not move the order.
func (v DeliveryStatus) OrderStatus() (OrderStatus, bool) {
	switch v {
	case DeliveryStatusPickedUp:
		return OrderStatusPickedUp, true
	case DeliveryStatusInTransit:
		return OrderStatusInTransit, true
	case DeliveryStatusDelivered:
		return OrderStatusDelivered, true
	case DeliveryStatusReturned:
		return OrderStatusReturned, true
	}
	return "", false
}
