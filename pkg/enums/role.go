package enums

// Role is the platform role carried in access tokens.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleOrderManager Role = "order_manager"
	RoleCustomer     Role = "customer"
	RoleVendor       Role = "vendor"
	RoleDelivery     Role = "delivery"
)

var validRoles = []Role{
	RoleAdmin,
	RoleOrderManager,
	RoleCustomer,
	RoleVendor,
	RoleDelivery,
}

// String implements fmt.Stringer.
func (v Role) String() string {
	return string(v)
}

// IsValid reports whether the value is a known Role.
func (v Role) IsValid() bool {
	return contains(validRoles, v)
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	return parse(validRoles, value, "role")
}

// IsStaff reports whether the role operates the platform on behalf of others.
func (v Role) IsStaff() bool {
	return v == RoleAdmin || v == RoleOrderManager
}
