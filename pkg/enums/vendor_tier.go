package enums

// VendorTier is the subscription package of a vendor.
type VendorTier string

const (
	VendorTierBasic      VendorTier = "basic"
	VendorTierPro        VendorTier = "pro"
	VendorTierEnterprise VendorTier = "enterprise"
)

var validVendorTiers = []VendorTier{
	VendorTierBasic,
	VendorTierPro,
	VendorTierEnterprise,
}

// String implements fmt.Stringer.
func (v VendorTier) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VendorTier.
func (v VendorTier) IsValid() bool {
	return contains(validVendorTiers, v)
}

// ParseVendorTier converts raw input into a VendorTier.
func ParseVendorTier(value string) (VendorTier, error) {
	return parse(validVendorTiers, value, "vendor tier")
}
