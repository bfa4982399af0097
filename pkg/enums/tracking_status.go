package enums

// TrackingStatus labels one row of the delivery tracking log.
type TrackingStatus string

const (
	TrackingStatusPending          TrackingStatus = "pending"
	TrackingStatusProcessing       TrackingStatus = "processing"
	TrackingStatusAssigned         TrackingStatus = "assigned"
	TrackingStatusPickedUp         TrackingStatus = "picked_up"
	TrackingStatusInTransit        TrackingStatus = "in_transit"
	TrackingStatusDelivered        TrackingStatus = "delivered"
	TrackingStatusFailed           TrackingStatus = "failed"
	TrackingStatusCancelled        TrackingStatus = "cancelled"
	TrackingStatusReturned         TrackingStatus = "returned"
	TrackingStatusUnassigned       TrackingStatus = "unassigned"
	TrackingStatusPaymentConfirmed TrackingStatus = "payment_confirmed"
)

var validTrackingStatuses = []TrackingStatus{
	TrackingStatusPending,
	TrackingStatusProcessing,
	TrackingStatusAssigned,
	TrackingStatusPickedUp,
	TrackingStatusInTransit,
	TrackingStatusDelivered,
	TrackingStatusFailed,
	TrackingStatusCancelled,
	TrackingStatusReturned,
	TrackingStatusUnassigned,
	TrackingStatusPaymentConfirmed,
}

// String implements fmt.Stringer.
func (v TrackingStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known TrackingStatus.
func (v TrackingStatus) IsValid() bool {
	return contains(validTrackingStatuses, v)
}

// ParseTrackingStatus converts raw input into a TrackingStatus.
func ParseTrackingStatus(value string) (TrackingStatus, error) {
	return parse(validTrackingStatuses, value, "tracking status")
}
