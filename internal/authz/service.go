// Package authz answers capability questions for authenticated principals.
// Policies live in the casbin_rule table; vendor tiers are grouped under the
// vendor role so every tier shares the vendor capabilities.
package authz

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	casbinTableName = "casbin_rule"
	rolePrefix      = "role:"
	tierPrefix      = "tier:"
)

const capabilityModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && r.obj == p.obj && (r.act == p.act || p.act == "*")
`

// Capability names a resource and an action on it.
type Capability struct {
	Resource string
	Action   string
}

func (c Capability) String() string {
	return c.Resource + ":" + c.Action
}

var (
	CapOrderPlace         = Capability{"orders", "place"}
	CapOrderRead          = Capability{"orders", "read"}
	CapOrderDecide        = Capability{"orders", "decide"}
	CapOrderCancel        = Capability{"orders", "cancel"}
	CapDeliveryStatus     = Capability{"delivery", "status"}
	CapDeliveryAssign     = Capability{"delivery", "assign"}
	CapDeliveryBrowse     = Capability{"delivery", "browse"}
	CapDeliveryClaim      = Capability{"delivery", "claim"}
	CapClaimDecide        = Capability{"claims", "decide"}
	CapPaymentConfirm     = Capability{"payments", "confirm"}
	CapAgentProfile       = Capability{"agents", "profile"}
	CapAgentVerify        = Capability{"agents", "verify"}
	CapVendorPaymentsPay  = Capability{"vendor_payments", "pay"}
	CapVendorPaymentsRead = Capability{"vendor_payments", "read"}
)

// Service wraps a synced casbin enforcer.
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService loads policies from db and seeds the built-in matrix.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}

	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter: %w", err)
	}

	m, err := model.NewModelFromString(capabilityModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer: %w", err)
	}
	enforcer.EnableAutoSave(true)

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy: %w", err)
	}

	svc := &Service{enforcer: enforcer}
	if err := svc.seed(); err != nil {
		return nil, err
	}
	return svc, nil
}

// Can reports whether the principal holds the capability.
func (s *Service) Can(p auth.Principal, capability Capability) (bool, error) {
	if s == nil || s.enforcer == nil {
		return false, fmt.Errorf("authz service unavailable")
	}
	return s.enforcer.Enforce(SubjectFor(p), capability.Resource, capability.Action)
}

// Require is Can folded into a typed forbidden error.
func (s *Service) Require(p auth.Principal, capability Capability) error {
	ok, err := s.Can(p, capability)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "authorization check failed")
	}
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeForbidden, "role %s may not %s", p.Role, capability)
	}
	return nil
}

// Grant adds a policy for a role subject at runtime.
func (s *Service) Grant(role enums.Role, capability Capability) error {
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", role)
	}
	if _, err := s.enforcer.AddPolicy(rolePrefix+role.String(), capability.Resource, capability.Action); err != nil {
		return fmt.Errorf("grant %s to %s: %w", capability, role, err)
	}
	return nil
}

// SubjectFor maps a principal onto its casbin subject. Vendors are addressed
// by tier so tier-specific grants stay possible.
func SubjectFor(p auth.Principal) string {
	if p.Role == enums.RoleVendor {
		return tierPrefix + p.Tier().String()
	}
	return rolePrefix + strings.TrimSpace(p.Role.String())
}

func (s *Service) seed() error {
	for _, tier := range []enums.VendorTier{enums.VendorTierBasic, enums.VendorTierPro, enums.VendorTierEnterprise} {
		if _, err := s.enforcer.AddGroupingPolicy(tierPrefix+tier.String(), rolePrefix+enums.RoleVendor.String()); err != nil {
			return fmt.Errorf("seed vendor tier %s: %w", tier, err)
		}
	}
	for role, caps := range builtinPolicies() {
		for _, c := range caps {
			if _, err := s.enforcer.AddPolicy(rolePrefix+role.String(), c.Resource, c.Action); err != nil {
				return fmt.Errorf("seed policy %s for %s: %w", c, role, err)
			}
		}
	}
	return nil
}
