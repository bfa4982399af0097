package models

// All lists every persisted model, in foreign-key order.
func All() []any {
	return []any{
		&Vendor{},
		&Product{},
		&Zone{},
		&Coupon{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&DeliveryPersonnel{},
		&DeliveryAssignment{},
		&DeliveryClaimRequest{},
		&DeliveryTracking{},
		&VendorPayment{},
		&PaymentConfirmation{},
		&LedgerEvent{},
		&Notification{},
	}
}
