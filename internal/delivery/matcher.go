package delivery

import (
	"context"
	"errors"

	"github.com/angelmondragon/fulfillment-engine/internal/orders"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Candidate is a ranked agent together with its current load.
type Candidate struct {
	models.DeliveryPersonnel
	ActiveAssignments int64 `json:"active_assignments"`
}

// Matcher ranks delivery personnel for an order or a zone.
type Matcher struct {
	repo   Repository
	orders orders.Repository
}

func NewMatcher(repo Repository, ordersRepo orders.Repository) *Matcher {
	return &Matcher{repo: repo, orders: ordersRepo}
}

// CandidatesForOrder lists agents eligible for push assignment, best rated
// first and least busy among equals.
func (m *Matcher) CandidatesForOrder(ctx context.Context, orderID uuid.UUID) ([]Candidate, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := m.orders.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return m.rank(ctx, order.DeliveryZoneID, candidateOrder)
}

// BrowseZone lists a zone's available agents, most experienced first among
// equally rated ones.
func (m *Matcher) BrowseZone(ctx context.Context, zoneID *uuid.UUID) ([]Candidate, error) {
	return m.rank(ctx, zoneID, browseOrder)
}

func (m *Matcher) ActiveAssignmentCount(ctx context.Context, deliveryID uuid.UUID) (int64, error) {
	count, err := m.repo.CountActiveAssignments(ctx, deliveryID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active assignments")
	}
	return count, nil
}

func (m *Matcher) rank(ctx context.Context, zoneID *uuid.UUID, orderBy string) ([]Candidate, error) {
	personnel, err := m.repo.ListAvailable(ctx, zoneID, orderBy)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery personnel")
	}
	out := make([]Candidate, 0, len(personnel))
	for _, p := range personnel {
		count, err := m.ActiveAssignmentCount(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{DeliveryPersonnel: p, ActiveAssignments: count})
	}
	return out, nil
}
