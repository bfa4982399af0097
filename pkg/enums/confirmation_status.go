package enums

// ConfirmationStatus is the vendor decision sub-state of a pending order.
type ConfirmationStatus string

const (
	ConfirmationStatusPending   ConfirmationStatus = "pending"
	ConfirmationStatusConfirmed ConfirmationStatus = "confirmed"
	ConfirmationStatusRejected  ConfirmationStatus = "rejected"
)

var validConfirmationStatuses = []ConfirmationStatus{
	ConfirmationStatusPending,
	ConfirmationStatusConfirmed,
	ConfirmationStatusRejected,
}

// String implements fmt.Stringer.
func (v ConfirmationStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known ConfirmationStatus.
func (v ConfirmationStatus) IsValid() bool {
	return contains(validConfirmationStatuses, v)
}

// ParseConfirmationStatus converts raw input into a ConfirmationStatus.
func ParseConfirmationStatus(value string) (ConfirmationStatus, error) {
	return parse(validConfirmationStatuses, value, "confirmation status")
}
