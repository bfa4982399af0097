package authz

import (
	"testing"

	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(dbtest.Open(t))
	require.NoError(t, err)
	return svc
}

func vendorPrincipal(tier *enums.VendorTier) auth.Principal {
	vendorID := uuid.New()
	return auth.Principal{UserID: uuid.New(), Role: enums.RoleVendor, VendorID: &vendorID, VendorTier: tier}
}

func TestVendorTiersShareVendorCapabilities(t *testing.T) {
	svc := newTestService(t)

	for _, tier := range []enums.VendorTier{enums.VendorTierBasic, enums.VendorTierPro, enums.VendorTierEnterprise} {
		tier := tier
		p := vendorPrincipal(&tier)
		ok, err := svc.Can(p, CapDeliveryAssign)
		require.NoError(t, err)
		assert.True(t, ok, "tier %s", tier)

		ok, err = svc.Can(p, CapVendorPaymentsPay)
		require.NoError(t, err)
		assert.False(t, ok, "tier %s", tier)
	}

	ok, err := svc.Can(vendorPrincipal(nil), CapOrderDecide)
	require.NoError(t, err)
	assert.True(t, ok, "vendor without tier falls back to basic")
}

func TestRoleMatrix(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		role enums.Role
		cap  Capability
		want bool
	}{
		{enums.RoleCustomer, CapOrderPlace, true},
		{enums.RoleCustomer, CapDeliveryAssign, false},
		{enums.RoleDelivery, CapDeliveryClaim, true},
		{enums.RoleDelivery, CapOrderDecide, false},
		{enums.RoleOrderManager, CapClaimDecide, true},
		{enums.RoleOrderManager, CapAgentVerify, false},
		{enums.RoleAdmin, CapAgentVerify, true},
		{enums.RoleAdmin, CapVendorPaymentsPay, true},
	}
	for _, tc := range cases {
		ok, err := svc.Can(auth.Principal{UserID: uuid.New(), Role: tc.role}, tc.cap)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, "%s %s", tc.role, tc.cap)
	}
}

func TestRequireReturnsForbidden(t *testing.T) {
	svc := newTestService(t)

	err := svc.Require(auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}, CapClaimDecide)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	require.NoError(t, svc.Grant(enums.RoleCustomer, CapClaimDecide))
	assert.NoError(t, svc.Require(auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}, CapClaimDecide))
}

func TestSeedIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	_, err := NewService(db)
	require.NoError(t, err)
	svc, err := NewService(db)
	require.NoError(t, err)

	ok, err := svc.Can(auth.Principal{Role: enums.RoleAdmin}, CapAgentVerify)
	require.NoError(t, err)
	assert.True(t, ok)
}
