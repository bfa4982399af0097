package errors

import "fmt"

// Named failures of the fulfillment core. Each maps onto one Code so the
// HTTP layer never needs to know about them individually.

func EmptyCart() *Error {
	return New(CodeValidation, "cart is empty")
}

func InvalidCartTotal() *Error {
	return New(CodeValidation, "cart total must be greater than zero")
}

func InvalidPaymentMethod(method string) *Error {
	return New(CodeValidation, "invalid payment method").
		WithDetails(map[string]any{"payment_method": method})
}

func NoResolvableVendorItems() *Error {
	return New(CodeValidation, "no cart item could be matched to a vendor")
}

func InvalidTransition(from, to string) *Error {
	return New(CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

func InsufficientStock(productID string, requested int) *Error {
	return New(CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"product_id": productID, "requested": requested})
}

func InsufficientFunds(expected, received string) *Error {
	return New(CodeInsufficientFunds, "payment received does not match order total").
		WithDetails(map[string]any{"expected": expected, "received": received})
}

func AlreadyProcessed(what string) *Error {
	return New(CodeConflict, what+" already processed")
}

func NotApproved(what string) *Error {
	return New(CodeStateConflict, what+" is not approved")
}
