package checkout

import (
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one priced line of the customer's cart snapshot.
type CartLine struct {
	ProductID  uuid.UUID        `json:"product_id" validate:"required"`
	Quantity   int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	FinalPrice *decimal.Decimal `json:"final_price,omitempty"`
	VendorID   *uuid.UUID       `json:"vendor_id,omitempty"`
}

// SplitInput is a checkout request. CustomerID comes from the caller's token.
type SplitInput struct {
	CustomerID     uuid.UUID           `json:"-"`
	AddressID      *uuid.UUID          `json:"address_id,omitempty"`
	DeliveryZoneID *uuid.UUID          `json:"delivery_zone_id,omitempty"`
	CouponCode     string              `json:"coupon_code,omitempty"`
	DeliveryFee    *decimal.Decimal    `json:"delivery_fee,omitempty"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method" validate:"required"`
	Notes          string              `json:"notes,omitempty"`
	Lines          []CartLine          `json:"lines" validate:"dive"`
}

type SplitOrder struct {
	OrderID  uuid.UUID       `json:"order_id"`
	VendorID uuid.UUID       `json:"vendor_id"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Fee      decimal.Decimal `json:"delivery_fee"`
	Total    decimal.Decimal `json:"total"`
}

// SplitResult lists the sibling orders produced by one checkout.
type SplitResult struct {
	SplitGroupID uuid.UUID       `json:"split_group_id"`
	Discount     decimal.Decimal `json:"discount"`
	Orders       []SplitOrder    `json:"orders"`
}
