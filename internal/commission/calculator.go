package commission

import (
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Breakdown splits a vendor amount into the platform cut and the vendor net.
// Commission + Net always equals Amount.
type Breakdown struct {
	Amount     decimal.Decimal
	Rate       decimal.Decimal
	Commission decimal.Decimal
	Net        decimal.Decimal
}

// Calculate applies rate (a percentage) to amount. Net is derived from the
// rounded commission.
func Calculate(amount, rate decimal.Decimal) Breakdown {
	amount = amount.Round(2)
	commission := amount.Mul(rate).Div(hundred).Round(2)
	return Breakdown{
		Amount:     amount,
		Rate:       rate,
		Commission: commission,
		Net:        amount.Sub(commission),
	}
}

// Base is the part of an order the vendor is paid on. The delivery fee
// belongs to the courier.
func Base(order *models.Order) decimal.Decimal {
	base := order.Subtotal.Sub(order.Discount)
	if base.IsNegative() {
		return decimal.Zero
	}
	return base
}

var tierRates = map[enums.VendorTier]decimal.Decimal{
	enums.VendorTierBasic:      decimal.NewFromInt(15),
	enums.VendorTierPro:        decimal.NewFromInt(10),
	enums.VendorTierEnterprise: decimal.NewFromInt(7),
}

// RateResolver picks the commission rate for a vendor: its own override,
// then its tier default, then the configured fallback.
type RateResolver struct {
	fallback decimal.Decimal
}

func NewRateResolver(fallback decimal.Decimal) RateResolver {
	return RateResolver{fallback: fallback}
}

func (r RateResolver) Rate(vendor *models.Vendor) decimal.Decimal {
	if vendor == nil {
		return r.fallback
	}
	if vendor.CommissionRate.Valid {
		return vendor.CommissionRate.Decimal
	}
	if rate, ok := tierRates[vendor.Tier]; ok {
		return rate
	}
	return r.fallback
}
