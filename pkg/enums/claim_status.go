package enums

// ClaimStatus tracks a delivery agent claim on an order.
type ClaimStatus string

const (
	ClaimStatusPending   ClaimStatus = "pending"
	ClaimStatusApproved  ClaimStatus = "approved"
	ClaimStatusRejected  ClaimStatus = "rejected"
	ClaimStatusCancelled ClaimStatus = "cancelled"
)

var validClaimStatuses = []ClaimStatus{
	ClaimStatusPending,
	ClaimStatusApproved,
	ClaimStatusRejected,
	ClaimStatusCancelled,
}

// String implements fmt.Stringer.
func (v ClaimStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known ClaimStatus.
func (v ClaimStatus) IsValid() bool {
	return contains(validClaimStatuses, v)
}

// ParseClaimStatus converts raw input into a ClaimStatus.
func ParseClaimStatus(value string) (ClaimStatus, error) {
	return parse(validClaimStatuses, value, "claim status")
}

// IsActive reports whether the claim still blocks other agents.
func (v ClaimStatus) IsActive() bool {
	return v == ClaimStatusPending || v == ClaimStatusApproved
}
