package checkout

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
)

// LineInput describes the data required to validate one cart line.
type LineInput struct {
	ProductID  uuid.UUID
	Quantity   int
	UnitPrice  decimal.Decimal
	FinalPrice *decimal.Decimal
}

// LineViolationDetail exposes the data returned to callers when a validation fails.
type LineViolationDetail struct {
	Index     int       `json:"index"`
	ProductID uuid.UUID `json:"product_id"`
	Reason    string    `json:"reason"`
}

// Price is the amount charged per unit: the final price when present.
func (l LineInput) Price() decimal.Decimal {
	if l.FinalPrice != nil {
		return *l.FinalPrice
	}
	return l.UnitPrice
}

// Total is price times quantity.
func (l LineInput) Total() decimal.Decimal {
	return l.Price().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ValidateLines ensures every line names a product, a positive quantity
// and a non-negative price.
func ValidateLines(lines []LineInput) error {
	var violations []LineViolationDetail
	for i, line := range lines {
		reason := ""
		switch {
		case line.ProductID == uuid.Nil:
			reason = "product_id required"
		case line.Quantity <= 0:
			reason = "quantity must be positive"
		case line.UnitPrice.IsNegative():
			reason = "unit_price must not be negative"
		case line.FinalPrice != nil && line.FinalPrice.IsNegative():
			reason = "final_price must not be negative"
		}
		if reason != "" {
			violations = append(violations, LineViolationDetail{Index: i, ProductID: line.ProductID, Reason: reason})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cart line(s): %d", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

// Subtotal sums the line totals.
func Subtotal(lines []LineInput) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total())
	}
	return total
}
