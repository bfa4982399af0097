package enums

// NotificationKind names the event a notification reports.
type NotificationKind string

const (
	NotificationKindOrderPlaced        NotificationKind = "order_placed"
	NotificationKindOrderConfirmed     NotificationKind = "order_confirmed"
	NotificationKindOrderRejected      NotificationKind = "order_rejected"
	NotificationKindOrderCancelled     NotificationKind = "order_cancelled"
	NotificationKindOrderAssigned      NotificationKind = "order_assigned"
	NotificationKindOrderStatusChanged NotificationKind = "order_status_changed"
	NotificationKindClaimCancelled     NotificationKind = "claim_cancelled"
	NotificationKindPaymentConfirmed   NotificationKind = "payment_confirmed"
	NotificationKindVendorPaymentPaid  NotificationKind = "vendor_payment_paid"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindOrderPlaced,
	NotificationKindOrderConfirmed,
	NotificationKindOrderRejected,
	NotificationKindOrderCancelled,
	NotificationKindOrderAssigned,
	NotificationKindOrderStatusChanged,
	NotificationKindClaimCancelled,
	NotificationKindPaymentConfirmed,
	NotificationKindVendorPaymentPaid,
}

// String implements fmt.Stringer.
func (v NotificationKind) String() string {
	return string(v)
}

// IsValid reports whether the value is a known NotificationKind.
func (v NotificationKind) IsValid() bool {
	return contains(validNotificationKinds, v)
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	return parse(validNotificationKinds, value, "notification kind")
}
