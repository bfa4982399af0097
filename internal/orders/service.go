package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/fulfillment-engine/internal/notifications"
	"github.com/angelmondragon/fulfillment-engine/internal/tracking"
	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/angelmondragon/fulfillment-engine/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service drives an order through its lifecycle.
type Service interface {
	ConfirmOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error)
	RejectOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID, reason string) (*models.Order, error)
	CancelOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID, reason string) (*models.Order, error)
	UpdateDeliveryStatus(ctx context.Context, actor auth.Principal, input DeliveryStatusInput) (*models.Order, error)
	GetOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error)
	ListSplitGroup(ctx context.Context, actor auth.Principal, splitGroupID uuid.UUID) ([]models.Order, error)
	ListTracking(ctx context.Context, actor auth.Principal, orderID uuid.UUID) ([]models.DeliveryTracking, error)
}

// Dependencies groups the collaborators of the lifecycle service. Notifier,
// Metrics and Logger are optional.
type Dependencies struct {
	Repo     Repository
	Tx       txRunner
	Tracking tracking.Repository
	Stock    StockReleaser
	Courier  Courier
	Payables PayableApprover
	Vendors  VendorDirectory
	Photos   storage.PhotoStore
	Notifier notifications.Notifier
	Metrics  transitionRecorder
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	tracking tracking.Repository
	stock    StockReleaser
	courier  Courier
	payables PayableApprover
	vendors  VendorDirectory
	photos   storage.PhotoStore
	notifier notifications.Notifier
	metrics  transitionRecorder
	logg     *logger.Logger
	now      func() time.Time
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, ...notifications.Notice) {}

type noopRecorder struct{}

func (noopRecorder) ObserveTransition(string, string) {}

// NewService builds the lifecycle service.
func NewService(deps Dependencies) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Tracking == nil:
		return nil, fmt.Errorf("tracking repository required")
	case deps.Stock == nil:
		return nil, fmt.Errorf("stock releaser required")
	case deps.Courier == nil:
		return nil, fmt.Errorf("courier required")
	case deps.Payables == nil:
		return nil, fmt.Errorf("payable approver required")
	case deps.Vendors == nil:
		return nil, fmt.Errorf("vendor directory required")
	case deps.Photos == nil:
		return nil, fmt.Errorf("photo store required")
	}
	svc := &service{
		repo:     deps.Repo,
		tx:       deps.Tx,
		tracking: deps.Tracking,
		stock:    deps.Stock,
		courier:  deps.Courier,
		payables: deps.Payables,
		vendors:  deps.Vendors,
		photos:   deps.Photos,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if svc.notifier == nil {
		svc.notifier = noopNotifier{}
	}
	if svc.metrics == nil {
		svc.metrics = noopRecorder{}
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	return svc, nil
}

func (s *service) ConfirmOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
	return s.decide(ctx, actor, orderID, true, "")
}

func (s *service) RejectOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID, reason string) (*models.Order, error) {
	return s.decide(ctx, actor, orderID, false, reason)
}

// decide applies the vendor decision. Rejection does not return stock.
func (s *service) decide(ctx context.Context, actor auth.Principal, orderID uuid.UUID, accept bool, reason string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	target := enums.OrderStatusProcessing
	confirmation := enums.ConfirmationStatusConfirmed
	trackingStatus := enums.TrackingStatusProcessing
	kind := enums.NotificationKindOrderConfirmed
	if !accept {
		target = enums.OrderStatusCancelled
		confirmation = enums.ConfirmationStatusRejected
		trackingStatus = enums.TrackingStatusCancelled
		kind = enums.NotificationKindOrderRejected
	}

	var order *models.Order
	var from enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = loadLocked(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !actor.IsStaff() && !actor.OwnsVendor(order.VendorID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
		}
		if order.Status != enums.OrderStatusPending || order.ConfirmationStatus != enums.ConfirmationStatusPending {
			return pkgerrors.InvalidTransition(order.Status.String(), target.String())
		}
		from = order.Status

		now := s.now()
		updates := map[string]any{
			"status":              target,
			"confirmation_status": confirmation,
		}
		if !accept {
			updates["cancelled_at"] = now
			order.CancelledAt = &now
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = target
		order.ConfirmationStatus = confirmation

		notes := "confirmed by vendor"
		if !accept {
			notes = joinNotes("rejected by vendor", reason)
		}
		return s.track(ctx, tx, order.ID, trackingStatus, notes, actor.UserID, now)
	})
	if err != nil {
		return nil, pkgerrors.TxFailure(err, "order decision failed")
	}

	s.metrics.ObserveTransition(from.String(), order.Status.String())
	s.notify(ctx, order, kind, fmt.Sprintf("Order %s was %s by the vendor", shortID(order.ID), confirmation))
	return order, nil
}

func (s *service) CancelOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID, reason string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var order *models.Order
	var from enums.OrderStatus
	var boundAgent *uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = loadLocked(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !actor.IsStaff() && !(actor.Role == enums.RoleCustomer && order.CustomerID == actor.UserID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}
		if err := EnsureTransition(order.Status, enums.OrderStatusCancelled); err != nil {
			return err
		}
		from = order.Status
		now := s.now()

		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}
		if order.StockReleasedAt == nil {
			if err := s.releaseStock(ctx, tx, order); err != nil {
				return err
			}
			updates["stock_released_at"] = now
			order.StockReleasedAt = &now
		}
		if order.DeliveryID != nil {
			boundAgent = order.DeliveryID
			if err := s.courier.Release(ctx, tx, order, actor.UserID); err != nil {
				return err
			}
			updates["delivery_id"] = nil
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		order.DeliveryID = nil

		return s.track(ctx, tx, order.ID, enums.TrackingStatusCancelled, joinNotes("order cancelled", reason), actor.UserID, now)
	})
	if err != nil {
		return nil, pkgerrors.TxFailure(err, "cancel order failed")
	}

	s.metrics.ObserveTransition(from.String(), order.Status.String())
	msg := fmt.Sprintf("Order %s was cancelled", shortID(order.ID))
	s.notify(ctx, order, enums.NotificationKindOrderCancelled, msg)
	if boundAgent != nil {
		s.notifyAgent(ctx, *boundAgent, enums.NotificationKindOrderCancelled, msg, order.ID)
	}
	return order, nil
}

func (s *service) UpdateDeliveryStatus(ctx context.Context, actor auth.Principal, input DeliveryStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid delivery status %q", input.Status)
	}
	if input.Status == enums.DeliveryStatusDelivered && (input.Photo == nil || input.Photo.Body == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery photo is required when marking delivered").
			WithDetails(map[string]any{"field": "photo"})
	}

	// Authorise and validate before touching storage so rejected callers
	// never upload. Everything is checked again under the row lock.
	current, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	if err := s.authorizeCourier(ctx, nil, actor, current); err != nil {
		return nil, err
	}
	if err := checkDeliveryStep(current.Status, input.Status); err != nil {
		return nil, err
	}

	photoKey := ""
	if input.Photo != nil && input.Photo.Body != nil {
		key := storage.PhotoKey(current.ID, input.Status.String(), input.Photo.Filename, s.now())
		photoKey, err = s.photos.Put(ctx, key, input.Photo.ContentType, input.Photo.Body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store delivery photo")
		}
	}

	var order *models.Order
	var from enums.OrderStatus
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = loadLocked(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := s.authorizeCourier(ctx, tx, actor, order); err != nil {
			return err
		}
		if err := checkDeliveryStep(order.Status, input.Status); err != nil {
			return err
		}
		from = order.Status
		now := s.now()
		notes := input.Notes
		if photoKey != "" {
			notes = joinNotes(notes, "photo: "+photoKey)
		}

		target, changesStatus := input.Status.OrderStatus()
		if !changesStatus {
			return s.track(ctx, tx, order.ID, enums.TrackingStatusFailed, notes, actor.UserID, now)
		}

		updates := map[string]any{"status": target}
		switch target {
		case enums.OrderStatusDelivered:
			updates["actual_delivery_time"] = now
			order.ActualDeliveryTime = &now
			if order.PaymentMethod != enums.PaymentMethodCash {
				if err := s.courier.Complete(ctx, tx, order, actor.UserID); err != nil {
					return err
				}
				if err := s.payables.ApproveForOrder(ctx, tx, order.ID); err != nil {
					return err
				}
			}
		case enums.OrderStatusReturned:
			if err := s.courier.Release(ctx, tx, order, actor.UserID); err != nil {
				return err
			}
			if order.StockReleasedAt == nil {
				if err := s.releaseStock(ctx, tx, order); err != nil {
					return err
				}
				updates["stock_released_at"] = now
				order.StockReleasedAt = &now
			}
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}
		order.Status = target

		return s.track(ctx, tx, order.ID, enums.TrackingStatus(target), notes, actor.UserID, now)
	})
	if err != nil {
		s.discardPhoto(ctx, input.OrderID, photoKey)
		return nil, pkgerrors.TxFailure(err, "delivery status update failed")
	}

	if from != order.Status {
		s.metrics.ObserveTransition(from.String(), order.Status.String())
	}
	s.notify(ctx, order, enums.NotificationKindOrderStatusChanged,
		fmt.Sprintf("Order %s is now %s", shortID(order.ID), input.Status))
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	if err := s.authorizeView(ctx, actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ListSplitGroup(ctx context.Context, actor auth.Principal, splitGroupID uuid.UUID) ([]models.Order, error) {
	if splitGroupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "split group id required")
	}
	orders, err := s.repo.ListBySplitGroup(ctx, splitGroupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list split group")
	}
	if len(orders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "split group not found")
	}

	switch {
	case actor.IsStaff():
		return orders, nil
	case actor.Role == enums.RoleCustomer && orders[0].CustomerID == actor.UserID:
		return orders, nil
	case actor.Role == enums.RoleVendor:
		own := make([]models.Order, 0, 1)
		for _, o := range orders {
			if actor.OwnsVendor(o.VendorID) {
				own = append(own, o)
			}
		}
		if len(own) > 0 {
			return own, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "split group not visible to caller")
}

func (s *service) ListTracking(ctx context.Context, actor auth.Principal, orderID uuid.UUID) ([]models.DeliveryTracking, error) {
	order, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	rows, err := s.tracking.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tracking")
	}
	return rows, nil
}

// authorizeCourier allows admins and the agent bound to the order. tx may be
// nil outside a transaction.
func (s *service) authorizeCourier(ctx context.Context, tx *gorm.DB, actor auth.Principal, order *models.Order) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role != enums.RoleDelivery {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned delivery agent may report status")
	}
	agent, err := s.courier.AgentByUser(ctx, tx, actor.UserID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "delivery profile not found")
		}
		return err
	}
	if order.DeliveryID == nil || *order.DeliveryID != agent.ID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this agent")
	}
	return nil
}

func (s *service) authorizeView(ctx context.Context, actor auth.Principal, order *models.Order) error {
	switch {
	case actor.IsStaff():
		return nil
	case actor.Role == enums.RoleCustomer && order.CustomerID == actor.UserID:
		return nil
	case actor.OwnsVendor(order.VendorID):
		return nil
	case actor.Role == enums.RoleDelivery && order.DeliveryID != nil:
		agent, err := s.courier.AgentByUser(ctx, nil, actor.UserID)
		if err == nil && agent.ID == *order.DeliveryID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order not visible to caller")
}

// checkDeliveryStep validates a courier report against the current status.
// failed is recorded without moving the order.
func checkDeliveryStep(current enums.OrderStatus, status enums.DeliveryStatus) error {
	target, changesStatus := status.OrderStatus()
	if !changesStatus {
		if current == enums.OrderStatusPickedUp || current == enums.OrderStatusInTransit {
			return nil
		}
		return pkgerrors.InvalidTransition(current.String(), status.String())
	}
	return EnsureTransition(current, target)
}

func (s *service) releaseStock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for _, item := range order.Items {
		if err := s.stock.IncrementStock(ctx, tx, item.ProductID, item.Qty); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) track(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.TrackingStatus, notes string, actorID uuid.UUID, at time.Time) error {
	actor := actorID
	_, err := s.tracking.WithTx(tx).Append(ctx, tracking.Entry{
		OrderID: orderID,
		Status:  status,
		Notes:   notes,
		ActorID: &actor,
		At:      at,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking")
	}
	return nil
}

// notify runs after commit. Lookup failures only drop recipients.
func (s *service) notify(ctx context.Context, order *models.Order, kind enums.NotificationKind, msg string) {
	payload := map[string]any{"order_id": order.ID.String(), "status": order.Status.String()}
	notices := []notifications.Notice{{UserID: order.CustomerID, Kind: kind, Message: msg, Payload: payload}}
	if vendor, err := s.vendors.Vendor(ctx, order.VendorID); err == nil {
		notices = append(notices, notifications.Notice{UserID: vendor.UserID, Kind: kind, Message: msg, Payload: payload})
	} else {
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "vendor lookup for notification failed")
	}
	if order.DeliveryID != nil {
		if agent, err := s.courier.AgentByID(ctx, nil, *order.DeliveryID); err == nil {
			notices = append(notices, notifications.Notice{UserID: agent.UserID, Kind: kind, Message: msg, Payload: payload})
		}
	}
	s.notifier.Notify(ctx, notices...)
}

func (s *service) notifyAgent(ctx context.Context, deliveryID uuid.UUID, kind enums.NotificationKind, msg string, orderID uuid.UUID) {
	agent, err := s.courier.AgentByID(ctx, nil, deliveryID)
	if err != nil {
		return
	}
	s.notifier.Notify(ctx, notifications.Notice{
		UserID:  agent.UserID,
		Kind:    kind,
		Message: msg,
		Payload: map[string]any{"order_id": orderID.String()},
	})
}

func loadLocked(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.LockOrder(ctx, id)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	return order, nil
}

func mapLoadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func joinNotes(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "; ")
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}

// discardPhoto drops an upload whose transaction rolled back. Failures are
// logged only.
func (s *service) discardPhoto(ctx context.Context, orderID uuid.UUID, key string) {
	if key == "" {
		return
	}
	if err := s.photos.Delete(ctx, key); err != nil {
		ctx = s.logg.WithField(s.logg.WithOrderID(ctx, orderID.String()), "photo_key", key)
		s.logg.Error(ctx, "discard orphaned delivery photo failed", err)
	}
}
