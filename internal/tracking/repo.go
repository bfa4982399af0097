package tracking

import (
	"context"
	"time"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository appends to and reads the delivery tracking log. There is
// deliberately no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry Entry) (*models.DeliveryTracking, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryTracking, error)
}

// Entry is one status change to record.
type Entry struct {
	OrderID uuid.UUID
	Status  enums.TrackingStatus
	Notes   string
	ActorID *uuid.UUID
	At      time.Time
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry Entry) (*models.DeliveryTracking, error) {
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := &models.DeliveryTracking{
		OrderID:   entry.OrderID,
		Status:    entry.Status,
		ActorID:   entry.ActorID,
		CreatedAt: at,
	}
	if entry.Notes != "" {
		notes := entry.Notes
		row.Notes = &notes
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryTracking, error) {
	var rows []models.DeliveryTracking
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
