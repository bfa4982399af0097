package checkout

import (
	"time"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func couponRejected(code, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "coupon cannot be applied").
		WithDetails(map[string]any{"coupon_code": code, "reason": reason})
}

// couponDiscount evaluates a coupon against the whole cart subtotal. The
// result never exceeds the subtotal.
func couponDiscount(coupon *models.Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	switch {
	case !coupon.IsActive:
		return decimal.Zero, couponRejected(coupon.Code, "inactive")
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return decimal.Zero, couponRejected(coupon.Code, "not started")
	case coupon.EndsAt != nil && now.After(*coupon.EndsAt):
		return decimal.Zero, couponRejected(coupon.Code, "expired")
	case coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit:
		return decimal.Zero, couponRejected(coupon.Code, "usage limit reached")
	case subtotal.LessThan(coupon.MinAmount):
		return decimal.Zero, couponRejected(coupon.Code, "minimum amount not met")
	}

	var discount decimal.Decimal
	switch coupon.Type {
	case enums.CouponTypePercent:
		discount = subtotal.Mul(coupon.Value).Div(hundred)
	case enums.CouponTypeFixed:
		discount = coupon.Value
	default:
		return decimal.Zero, couponRejected(coupon.Code, "unknown type")
	}
	if coupon.MaxDiscount.Valid && discount.GreaterThan(coupon.MaxDiscount.Decimal) {
		discount = coupon.MaxDiscount.Decimal
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount.Round(2), nil
}
