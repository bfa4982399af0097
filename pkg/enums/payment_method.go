package enums

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodTransfer,
}

// String implements fmt.Stringer.
func (v PaymentMethod) String() string {
	return string(v)
}

// IsValid reports whether the value is a known PaymentMethod.
func (v PaymentMethod) IsValid() bool {
	return contains(validPaymentMethods, v)
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(validPaymentMethods, value, "payment method")
}
