package ledger

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service records immutable money events. Record joins the caller's
// transaction so a ledger row never outlives a rolled back state change.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.LedgerEvent, error)
	HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
	Earnings(ctx context.Context, deliveryID uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data a ledger event requires.
type RecordInput struct {
	OrderID       uuid.UUID
	BeneficiaryID *uuid.UUID
	ActorID       *uuid.UUID
	Type          enums.LedgerEventType
	Amount        decimal.Decimal
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.LedgerEvent, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("ledger amount must not be negative")
	}

	event := &models.LedgerEvent{
		OrderID:       input.OrderID,
		BeneficiaryID: input.BeneficiaryID,
		ActorID:       input.ActorID,
		Type:          input.Type,
		Amount:        input.Amount.Round(2),
	}

	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if orderID == uuid.Nil {
		return false, fmt.Errorf("order id is required")
	}
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid ledger event type %q", eventType)
	}

	events, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, event := range events {
		if event.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}

// Earnings sums the delivery fees credited to one agent.
func (s *service) Earnings(ctx context.Context, deliveryID uuid.UUID) (decimal.Decimal, error) {
	if deliveryID == uuid.Nil {
		return decimal.Zero, fmt.Errorf("delivery id is required")
	}
	return s.repo.SumForBeneficiary(ctx, deliveryID, enums.LedgerEventTypeDeliveryEarning)
}
