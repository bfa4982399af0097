package enums

// LedgerEventType maps to the ledger_event_type column.
type LedgerEventType string

const (
	LedgerEventTypeCashCollected      LedgerEventType = "cash_collected"
	LedgerEventTypeVendorPayout       LedgerEventType = "vendor_payout"
	LedgerEventTypeDeliveryEarning    LedgerEventType = "delivery_earning"
	LedgerEventTypePlatformCommission LedgerEventType = "platform_commission"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventTypeCashCollected,
	LedgerEventTypeVendorPayout,
	LedgerEventTypeDeliveryEarning,
	LedgerEventTypePlatformCommission,
}

// String implements fmt.Stringer.
func (v LedgerEventType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known LedgerEventType.
func (v LedgerEventType) IsValid() bool {
	return contains(validLedgerEventTypes, v)
}

// ParseLedgerEventType converts raw input into a LedgerEventType.
func ParseLedgerEventType(value string) (LedgerEventType, error) {
	return parse(validLedgerEventTypes, value, "ledger event type")
}
