// Package catalog adapts the product catalog to the narrow stock surface the
// fulfillment core consumes.
package catalog

import (
	"context"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Gateway exposes vendor lookup and per-row stock mutations. Stock calls
// join the caller's transaction.
type Gateway interface {
	VendorOf(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	IncrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Vendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
	ZoneFee(ctx context.Context, zoneID uuid.UUID) (decimal.Decimal, error)
}

type gormGateway struct {
	db *gorm.DB
}

func NewGateway(db *gorm.DB) Gateway {
	return &gormGateway{db: db}
}

// VendorOf resolves owners for the given products. Unknown products are
// simply absent from the result.
func (g *gormGateway) VendorOf(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := g.db.WithContext(ctx).
		Select("id", "vendor_id").
		Where("id IN ?", productIDs).
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve product vendors")
	}
	for _, row := range rows {
		out[row.ID] = row.VendorID
	}
	return out, nil
}

// DecrementStock takes qty units if and only if enough are left. A miss is
// reported as InsufficientStock so callers can tell it apart from storage
// failures.
func (g *gormGateway) DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock decrement")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = stock - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.InsufficientStock(productID.String(), qty)
	}
	return nil
}

func (g *gormGateway) IncrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	return nil
}

// Vendor loads a vendor with its tier and commission override.
func (g *gormGateway) Vendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := g.db.WithContext(ctx).First(&vendor, "id = ?", vendorID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	return &vendor, nil
}

func (g *gormGateway) ZoneFee(ctx context.Context, zoneID uuid.UUID) (decimal.Decimal, error) {
	var zone models.Zone
	if err := g.db.WithContext(ctx).First(&zone, "id = ?", zoneID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery zone")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery zone")
	}
	return zone.DeliveryFee, nil
}
