package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/fulfillment-engine/internal/ledger"
	"github.com/angelmondragon/fulfillment-engine/internal/notifications"
	"github.com/angelmondragon/fulfillment-engine/internal/orders"
	"github.com/angelmondragon/fulfillment-engine/internal/tracking"
	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	dbpkg "github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/angelmondragon/fulfillment-engine/pkg/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service closes cash-on-delivery orders.
type Service interface {
	ConfirmCash(ctx context.Context, actor auth.Principal, input ConfirmCashInput) (*ConfirmCashResult, error)
}

// ConfirmCashInput is the agent's report of cash handed over at the door.
type ConfirmCashInput struct {
	OrderID         uuid.UUID
	PaymentReceived decimal.Decimal
	Notes           string
	Photo           *storage.Photo
}

type ConfirmCashResult struct {
	Confirmation *models.PaymentConfirmation
	Order        *models.Order
}

// PayableApprover approves the vendor payable of a paid order inside the
// caller's transaction.
type PayableApprover interface {
	ApproveForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type cashRecorder interface {
	AddCashCollected(amount float64)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups the collaborators of the payment service.
type ServiceParams struct {
	Repo     Repository
	Orders   orders.Repository
	Tx       txRunner
	Tracking tracking.Repository
	Courier  orders.Courier
	Payables PayableApprover
	Ledger   ledger.Service
	Vendors  orders.VendorDirectory
	Photos   storage.PhotoStore
	Notifier notifications.Notifier
	Metrics  cashRecorder
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	orders   orders.Repository
	tx       txRunner
	tracking tracking.Repository
	courier  orders.Courier
	payables PayableApprover
	ledger   ledger.Service
	vendors  orders.VendorDirectory
	photos   storage.PhotoStore
	notifier notifications.Notifier
	metrics  cashRecorder
	logg     *logger.Logger
	now      func() time.Time
}

type noopRecorder struct{}

func (noopRecorder) AddCashCollected(float64) {}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Tracking == nil:
		return nil, fmt.Errorf("tracking repository required")
	case params.Courier == nil:
		return nil, fmt.Errorf("courier required")
	case params.Payables == nil:
		return nil, fmt.Errorf("payable approver required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case params.Photos == nil:
		return nil, fmt.Errorf("photo store required")
	}
	svc := &service{
		repo:     params.Repo,
		orders:   params.Orders,
		tx:       params.Tx,
		tracking: params.Tracking,
		courier:  params.Courier,
		payables: params.Payables,
		ledger:   params.Ledger,
		vendors:  params.Vendors,
		photos:   params.Photos,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if svc.metrics == nil {
		svc.metrics = noopRecorder{}
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	return svc, nil
}

var confirmableStatuses = map[enums.OrderStatus]bool{
	enums.OrderStatusAssigned:  true,
	enums.OrderStatusPickedUp:  true,
	enums.OrderStatusInTransit: true,
	enums.OrderStatusDelivered: true,
}

// ConfirmCash records the cash collected for an order. The amount must match
// the order total to the cent. Everything from the confirmation row to the
// ledger entry commits together.
func (s *service) ConfirmCash(ctx context.Context, actor auth.Principal, input ConfirmCashInput) (*ConfirmCashResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.PaymentReceived.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_received must be greater than zero").
			WithDetails(map[string]any{"field": "payment_received"})
	}

	// Reject before storing anything; the checks repeat under the row lock.
	current, err := s.orders.FindOrder(ctx, input.OrderID)
	if err != nil {
		return nil, mapNotFound(err, "order not found", "load order")
	}
	if err := s.check(ctx, nil, actor, current, input.PaymentReceived); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindConfirmation(ctx, current.ID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already confirmed")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment confirmation")
	}

	var photoKey *string
	if input.Photo != nil && input.Photo.Body != nil {
		key := storage.PhotoKey(current.ID, "payment", input.Photo.Filename, s.now())
		stored, err := s.photos.Put(ctx, key, input.Photo.ContentType, input.Photo.Body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment photo")
		}
		photoKey = &stored
	}

	var result ConfirmCashResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.LockOrder(ctx, input.OrderID)
		if err != nil {
			return mapNotFound(err, "order not found", "load order")
		}
		agent, err := s.checkLocked(ctx, tx, actor, order, input.PaymentReceived)
		if err != nil {
			return err
		}

		now := s.now()
		confirmation := &models.PaymentConfirmation{
			OrderID:         order.ID,
			DeliveryID:      agent.ID,
			PaymentReceived: input.PaymentReceived.Round(2),
			PhotoKey:        photoKey,
			ConfirmedAt:     now,
		}
		if input.Notes != "" {
			notes := input.Notes
			confirmation.Notes = &notes
		}
		if err := s.repo.WithTx(tx).CreateConfirmation(ctx, confirmation); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "payment already confirmed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment confirmation")
		}

		if err := ordersRepo.UpdatePayment(ctx, order.ID, map[string]any{
			"status":  enums.PaymentStatusPaid,
			"paid_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
		}

		updates := map[string]any{"status": enums.OrderStatusDelivered}
		if order.ActualDeliveryTime == nil {
			updates["actual_delivery_time"] = now
			order.ActualDeliveryTime = &now
		}
		if err := ordersRepo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
		}
		order.Status = enums.OrderStatusDelivered

		actorID := actor.UserID
		notes := fmt.Sprintf("cash %s collected", confirmation.PaymentReceived.StringFixed(2))
		if photoKey != nil {
			notes += "; photo: " + *photoKey
		}
		if _, err := s.tracking.WithTx(tx).Append(ctx, tracking.Entry{
			OrderID: order.ID,
			Status:  enums.TrackingStatusPaymentConfirmed,
			Notes:   notes,
			ActorID: &actorID,
			At:      now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking")
		}

		if err := s.courier.Complete(ctx, tx, order, actor.UserID); err != nil {
			return err
		}
		if err := s.payables.ApproveForOrder(ctx, tx, order.ID); err != nil {
			return err
		}
		beneficiary := agent.ID
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
			OrderID:       order.ID,
			BeneficiaryID: &beneficiary,
			ActorID:       &actorID,
			Type:          enums.LedgerEventTypeCashCollected,
			Amount:        confirmation.PaymentReceived,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record cash collected")
		}

		result = ConfirmCashResult{Confirmation: confirmation, Order: order}
		return nil
	})
	if err != nil {
		if photoKey != nil {
			if derr := s.photos.Delete(ctx, *photoKey); derr != nil {
				dctx := s.logg.WithField(s.logg.WithOrderID(ctx, input.OrderID.String()), "photo_key", *photoKey)
				s.logg.Error(dctx, "discard orphaned payment photo failed", derr)
			}
		}
		return nil, pkgerrors.TxFailure(err, "confirm payment failed")
	}

	s.metrics.AddCashCollected(result.Confirmation.PaymentReceived.InexactFloat64())
	s.notify(ctx, result.Order)
	return &result, nil
}

// check validates method, caller, status and amount. tx may be nil.
func (s *service) check(ctx context.Context, tx *gorm.DB, actor auth.Principal, order *models.Order, received decimal.Decimal) error {
	_, err := s.checkLocked(ctx, tx, actor, order, received)
	return err
}

func (s *service) checkLocked(ctx context.Context, tx *gorm.DB, actor auth.Principal, order *models.Order, received decimal.Decimal) (*models.DeliveryPersonnel, error) {
	if order.PaymentMethod != enums.PaymentMethodCash {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only cash orders are confirmed by the courier").
			WithDetails(map[string]any{"payment_method": order.PaymentMethod.String()})
	}
	if actor.Role != enums.RoleDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned delivery agent may confirm payment")
	}
	agent, err := s.courier.AgentByUser(ctx, tx, actor.UserID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery profile not found")
		}
		return nil, err
	}
	if order.DeliveryID == nil || *order.DeliveryID != agent.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this agent")
	}
	if !confirmableStatuses[order.Status] {
		return nil, pkgerrors.InvalidTransition(order.Status.String(), enums.OrderStatusDelivered.String())
	}
	if !received.Round(2).Equal(order.Total.Round(2)) {
		return nil, pkgerrors.InsufficientFunds(order.Total.StringFixed(2), received.StringFixed(2))
	}
	return agent, nil
}

func (s *service) notify(ctx context.Context, order *models.Order) {
	if s.notifier == nil {
		return
	}
	msg := fmt.Sprintf("Cash payment for order %s has been confirmed", order.ID)
	payload := map[string]any{"order_id": order.ID.String(), "total": order.Total.StringFixed(2)}
	notices := []notifications.Notice{{UserID: order.CustomerID, Kind: enums.NotificationKindPaymentConfirmed, Message: msg, Payload: payload}}
	if s.vendors != nil {
		if vendor, err := s.vendors.Vendor(ctx, order.VendorID); err == nil {
			notices = append(notices, notifications.Notice{UserID: vendor.UserID, Kind: enums.NotificationKindPaymentConfirmed, Message: msg, Payload: payload})
		} else {
			s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "vendor lookup for notification failed")
		}
	}
	s.notifier.Notify(ctx, notices...)
}

func mapNotFound(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
