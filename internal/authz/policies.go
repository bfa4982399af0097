package authz

import "github.com/angelmondragon/fulfillment-engine/pkg/enums"

// builtinPolicies is the capability matrix installed on startup. Ownership
// checks (which vendor, which agent) stay in the services.
func builtinPolicies() map[enums.Role][]Capability {
	staff := []Capability{
		CapOrderRead,
		CapOrderDecide,
		CapOrderCancel,
		CapDeliveryStatus,
		CapDeliveryAssign,
		CapDeliveryBrowse,
		CapClaimDecide,
	}
	return map[enums.Role][]Capability{
		enums.RoleAdmin: append(append([]Capability{}, staff...),
			CapAgentVerify,
			CapVendorPaymentsPay,
			CapVendorPaymentsRead,
		),
		enums.RoleOrderManager: staff,
		enums.RoleCustomer: {
			CapOrderPlace,
			CapOrderRead,
			CapOrderCancel,
		},
		enums.RoleVendor: {
			CapOrderRead,
			CapOrderDecide,
			CapDeliveryAssign,
			CapDeliveryBrowse,
			CapVendorPaymentsRead,
		},
		enums.RoleDelivery: {
			CapOrderRead,
			CapDeliveryStatus,
			CapDeliveryClaim,
			CapPaymentConfirm,
			CapAgentProfile,
		},
	}
}
