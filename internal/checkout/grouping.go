package checkout

import (
	pkgcheckout "github.com/angelmondragon/fulfillment-engine/pkg/checkout"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type vendorGroup struct {
	VendorID uuid.UUID
	Lines    []CartLine
	Subtotal decimal.Decimal
	Discount decimal.Decimal
}

func lineInput(line CartLine) pkgcheckout.LineInput {
	return pkgcheckout.LineInput{
		ProductID:  line.ProductID,
		Quantity:   line.Quantity,
		UnitPrice:  line.UnitPrice,
		FinalPrice: line.FinalPrice,
	}
}

// groupByVendor buckets resolved lines by vendor, in the order vendors first
// appear in the cart.
func groupByVendor(lines []CartLine) []*vendorGroup {
	index := make(map[uuid.UUID]*vendorGroup)
	var groups []*vendorGroup
	for _, line := range lines {
		vendorID := *line.VendorID
		group, ok := index[vendorID]
		if !ok {
			group = &vendorGroup{VendorID: vendorID, Subtotal: decimal.Zero, Discount: decimal.Zero}
			index[vendorID] = group
			groups = append(groups, group)
		}
		group.Lines = append(group.Lines, line)
		group.Subtotal = group.Subtotal.Add(lineInput(line).Total())
	}
	return groups
}

// allocateDiscount spreads discount over the groups in proportion to their
// subtotals. Every share but the last is truncated to cents; the last group
// takes the remainder so the shares add up to discount exactly. No share may
// exceed its group's subtotal: overflow moves to the groups before it.
func allocateDiscount(groups []*vendorGroup, cartSubtotal, discount decimal.Decimal) {
	if len(groups) == 0 {
		return
	}
	if !discount.IsPositive() || !cartSubtotal.IsPositive() {
		for _, g := range groups {
			g.Discount = decimal.Zero
		}
		return
	}
	if discount.GreaterThan(cartSubtotal) {
		discount = cartSubtotal
	}
	allocated := decimal.Zero
	last := len(groups) - 1
	for i, g := range groups {
		if i == last {
			g.Discount = discount.Sub(allocated)
			break
		}
		g.Discount = g.Subtotal.Mul(discount).Div(cartSubtotal).Truncate(2)
		allocated = allocated.Add(g.Discount)
	}

	excess := decimal.Zero
	for i := last; i >= 0; i-- {
		g := groups[i]
		g.Discount = g.Discount.Add(excess)
		excess = decimal.Zero
		if g.Discount.GreaterThan(g.Subtotal) {
			excess = g.Discount.Sub(g.Subtotal)
			g.Discount = g.Subtotal
		}
	}
}
