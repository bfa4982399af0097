package delivery

import (
	"context"

	dbpkg "github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	activeAssignmentIndex = "ux_delivery_assignments_active_order"
	activeClaimIndex      = "ux_delivery_claim_requests_active_order"
)

// candidateOrder ranks personnel for push assignment; browseOrder ranks them
// for the zone listing.
const (
	candidateOrder = "rating DESC, total_deliveries ASC, id ASC"
	browseOrder    = "rating DESC, total_deliveries DESC, id ASC"
)

// Repository persists delivery profiles, assignments and claims.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateProfile(ctx context.Context, profile *models.DeliveryPersonnel) error
	FindProfile(ctx context.Context, id uuid.UUID) (*models.DeliveryPersonnel, error)
	FindProfileByUser(ctx context.Context, userID uuid.UUID) (*models.DeliveryPersonnel, error)
	LockProfile(ctx context.Context, id uuid.UUID) (*models.DeliveryPersonnel, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) error
	IncrementDeliveries(ctx context.Context, id uuid.UUID) error
	ListAvailable(ctx context.Context, zoneID *uuid.UUID, orderBy string) ([]models.DeliveryPersonnel, error)
	ZoneExists(ctx context.Context, zoneID uuid.UUID) (bool, error)

	CreateAssignment(ctx context.Context, assignment *models.DeliveryAssignment) error
	ActiveAssignment(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error)
	UpdateAssignment(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CountActiveAssignments(ctx context.Context, deliveryID uuid.UUID) (int64, error)
	ListAssignedOrders(ctx context.Context, deliveryID uuid.UUID) ([]models.Order, error)

	CreateClaim(ctx context.Context, claim *models.DeliveryClaimRequest) error
	ActiveClaim(ctx context.Context, orderID uuid.UUID) (*models.DeliveryClaimRequest, error)
	LockClaim(ctx context.Context, id uuid.UUID) (*models.DeliveryClaimRequest, error)
	UpdateClaim(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a delivery repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateProfile(ctx context.Context, profile *models.DeliveryPersonnel) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repository) FindProfile(ctx context.Context, id uuid.UUID) (*models.DeliveryPersonnel, error) {
	var profile models.DeliveryPersonnel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FindProfileByUser(ctx context.Context, userID uuid.UUID) (*models.DeliveryPersonnel, error) {
	var profile models.DeliveryPersonnel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) LockProfile(ctx context.Context, id uuid.UUID) (*models.DeliveryPersonnel, error) {
	var profile models.DeliveryPersonnel
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.DeliveryPersonnel{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) IncrementDeliveries(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryPersonnel{}).
		Where("id = ?", id).
		Update("total_deliveries", gorm.Expr("total_deliveries + 1")).Error
}

// ListAvailable returns available, verified personnel. A nil zone widens the
// search to every zone.
func (r *repository) ListAvailable(ctx context.Context, zoneID *uuid.UUID, orderBy string) ([]models.DeliveryPersonnel, error) {
	q := r.db.WithContext(ctx).
		Where("is_available = ? AND is_verified = ?", true, true)
	if zoneID != nil {
		q = q.Where("zone_id = ?", *zoneID)
	}
	var personnel []models.DeliveryPersonnel
	if err := q.Order(orderBy).Find(&personnel).Error; err != nil {
		return nil, err
	}
	return personnel, nil
}

func (r *repository) ZoneExists(ctx context.Context, zoneID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Zone{}).Where("id = ?", zoneID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateAssignment(ctx context.Context, assignment *models.DeliveryAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *repository) ActiveAssignment(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error) {
	var assignment models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.AssignmentStatusAssigned).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) UpdateAssignment(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) CountActiveAssignments(ctx context.Context, deliveryID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("delivery_id = ? AND status = ?", deliveryID, enums.AssignmentStatusAssigned).
		Count(&count).Error
	return count, err
}

// ListAssignedOrders returns the orders an agent still has to finish.
func (r *repository) ListAssignedOrders(ctx context.Context, deliveryID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("delivery_id = ? AND status IN ?", deliveryID, []enums.OrderStatus{
			enums.OrderStatusAssigned,
			enums.OrderStatusPickedUp,
			enums.OrderStatusInTransit,
		}).
		Order("estimated_delivery_time ASC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) CreateClaim(ctx context.Context, claim *models.DeliveryClaimRequest) error {
	return r.db.WithContext(ctx).Create(claim).Error
}

// ActiveClaim returns the pending or approved claim on an order.
func (r *repository) ActiveClaim(ctx context.Context, orderID uuid.UUID) (*models.DeliveryClaimRequest, error) {
	var claim models.DeliveryClaimRequest
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND claim_status IN ?", orderID, []enums.ClaimStatus{
			enums.ClaimStatusPending,
			enums.ClaimStatusApproved,
		}).
		First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *repository) LockClaim(ctx context.Context, id uuid.UUID) (*models.DeliveryClaimRequest, error) {
	var claim models.DeliveryClaimRequest
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *repository) UpdateClaim(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.DeliveryClaimRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}
