package enums

// CouponType selects how a coupon value is applied.
type CouponType string

const (
	CouponTypeFixed   CouponType = "fixed"
	CouponTypePercent CouponType = "percent"
)

var validCouponTypes = []CouponType{
	CouponTypeFixed,
	CouponTypePercent,
}

// String implements fmt.Stringer.
func (v CouponType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known CouponType.
func (v CouponType) IsValid() bool {
	return contains(validCouponTypes, v)
}

// ParseCouponType converts raw input into a CouponType.
func ParseCouponType(value string) (CouponType, error) {
	return parse(validCouponTypes, value, "coupon type")
}
