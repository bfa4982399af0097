package auth

import (
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID     uuid.UUID
	Role       enums.Role
	VendorID   *uuid.UUID
	VendorTier *enums.VendorTier
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued by the identity service.
type AccessTokenClaims struct {
	UserID     uuid.UUID         `json:"user_id"`
	Role       enums.Role        `json:"role"`
	VendorID   *uuid.UUID        `json:"vendor_id,omitempty"`
	VendorTier *enums.VendorTier `json:"vendor_tier,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller handed to domain services.
type Principal struct {
	UserID     uuid.UUID
	Role       enums.Role
	VendorID   *uuid.UUID
	VendorTier *enums.VendorTier
}

// Principal projects the claims onto the caller identity services consume.
func (c *AccessTokenClaims) Principal() Principal {
	return Principal{
		UserID:     c.UserID,
		Role:       c.Role,
		VendorID:   c.VendorID,
		VendorTier: c.VendorTier,
	}
}

func (p Principal) IsStaff() bool {
	return p.Role.IsStaff()
}

func (p Principal) IsAdmin() bool {
	return p.Role == enums.RoleAdmin
}

// OwnsVendor reports whether the caller acts for the given vendor.
func (p Principal) OwnsVendor(vendorID uuid.UUID) bool {
	return p.Role == enums.RoleVendor && p.VendorID != nil && *p.VendorID == vendorID
}

// Tier returns the vendor tier, defaulting to basic for vendors without one.
func (p Principal) Tier() enums.VendorTier {
	if p.VendorTier == nil || !p.VendorTier.IsValid() {
		return enums.VendorTierBasic
	}
	return *p.VendorTier
}
