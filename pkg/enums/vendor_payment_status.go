package enums

// VendorPaymentStatus tracks the payout of one order to its vendor.
type VendorPaymentStatus string

const (
	VendorPaymentStatusPending  VendorPaymentStatus = "pending"
	VendorPaymentStatusApproved VendorPaymentStatus = "approved"
	VendorPaymentStatusPaid     VendorPaymentStatus = "paid"
)

var validVendorPaymentStatuses = []VendorPaymentStatus{
	VendorPaymentStatusPending,
	VendorPaymentStatusApproved,
	VendorPaymentStatusPaid,
}

// String implements fmt.Stringer.
func (v VendorPaymentStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VendorPaymentStatus.
func (v VendorPaymentStatus) IsValid() bool {
	return contains(validVendorPaymentStatuses, v)
}

// ParseVendorPaymentStatus converts raw input into a VendorPaymentStatus.
func ParseVendorPaymentStatus(value string) (VendorPaymentStatus, error) {
	return parse(validVendorPaymentStatuses, value, "vendor payment status")
}
