package delivery

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
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultETA = 24 * time.Hour

// AssignmentService binds orders to delivery agents through push assignment
// and pull claims, and keeps agent profiles.
type AssignmentService interface {
	orders.Courier

	Assign(ctx context.Context, actor auth.Principal, input AssignInput) (*models.Order, error)
	Claim(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*ClaimResult, error)
	ApproveClaim(ctx context.Context, actor auth.Principal, claimID uuid.UUID) (*ClaimResult, error)
	RejectClaim(ctx context.Context, actor auth.Principal, claimID uuid.UUID) (*models.DeliveryClaimRequest, error)
	CancelClaim(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error)

	EnsureProfile(ctx context.Context, actor auth.Principal, zoneID *uuid.UUID) (*models.DeliveryPersonnel, bool, error)
	SetAvailability(ctx context.Context, actor auth.Principal, available bool) (*models.DeliveryPersonnel, error)
	VerifyAgent(ctx context.Context, actor auth.Principal, deliveryID uuid.UUID, zoneID *uuid.UUID) (*models.DeliveryPersonnel, error)
	AssignedOrders(ctx context.Context, actor auth.Principal) ([]models.Order, error)
	Earnings(ctx context.Context, actor auth.Principal) (decimal.Decimal, error)
}

type assignmentRecorder interface {
	ObserveAssignment(path, outcome string)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups the collaborators of the assignment service.
type ServiceParams struct {
	Repo        Repository
	Orders      orders.Repository
	Tx          txRunner
	Tracking    tracking.Repository
	Ledger      ledger.Service
	Notifier    notifications.Notifier
	Metrics     assignmentRecorder
	Logger      *logger.Logger
	AutoApprove bool
	ETA         time.Duration
}

type service struct {
	repo        Repository
	orders      orders.Repository
	tx          txRunner
	tracking    tracking.Repository
	ledger      ledger.Service
	notifier    notifications.Notifier
	metrics     assignmentRecorder
	logg        *logger.Logger
	autoApprove bool
	eta         time.Duration
	now         func() time.Time
}

type noopRecorder struct{}

func (noopRecorder) ObserveAssignment(string, string) {}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, ...notifications.Notice) {}

func NewService(params ServiceParams) (AssignmentService, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("delivery repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Tracking == nil:
		return nil, fmt.Errorf("tracking repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	}
	svc := &service{
		repo:        params.Repo,
		orders:      params.Orders,
		tx:          params.Tx,
		tracking:    params.Tracking,
		ledger:      params.Ledger,
		notifier:    params.Notifier,
		metrics:     params.Metrics,
		logg:        params.Logger,
		autoApprove: params.AutoApprove,
		eta:         params.ETA,
		now:         func() time.Time { return time.Now().UTC() },
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
	if svc.eta <= 0 {
		svc.eta = defaultETA
	}
	return svc, nil
}

// Assign is the push path. Staff may assign any available agent; a vendor
// may only assign a verified agent of the order's zone to its own order.
func (s *service) Assign(ctx context.Context, actor auth.Principal, input AssignInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil || input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and delivery id required")
	}
	if !actor.IsStaff() && actor.Role != enums.RoleVendor {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot assign deliveries")
	}

	var order *models.Order
	var agent *models.DeliveryPersonnel
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.lockOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if actor.Role == enums.RoleVendor && !actor.OwnsVendor(order.VendorID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
		}
		if err := s.ensureAssignable(ctx, tx, order); err != nil {
			return err
		}

		agent, err = s.lockAgent(ctx, tx, input.DeliveryID)
		if err != nil {
			return err
		}
		if !agent.IsAvailable {
			return pkgerrors.New(pkgerrors.CodeConflict, "delivery agent is not available")
		}
		if actor.Role == enums.RoleVendor {
			if !agent.IsVerified {
				return pkgerrors.New(pkgerrors.CodeForbidden, "delivery agent is not verified")
			}
			if !sameZone(order.DeliveryZoneID, agent.ZoneID) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "delivery agent serves another zone")
			}
		}

		start := s.now()
		if input.PickupTime != nil {
			start = input.PickupTime.UTC()
		}
		return s.bind(ctx, tx, order, agent, actor.UserID, input.Notes, start)
	})
	if err != nil {
		s.metrics.ObserveAssignment("push", outcome(err))
		return nil, pkgerrors.TxFailure(err, "assign delivery failed")
	}
	s.metrics.ObserveAssignment("push", "assigned")

	msg := fmt.Sprintf("Order %s has been assigned to you", order.ID)
	s.notifier.Notify(ctx,
		notifications.Notice{UserID: agent.UserID, Kind: enums.NotificationKindOrderAssigned, Message: msg, Payload: orderPayload(order)},
		notifications.Notice{UserID: order.CustomerID, Kind: enums.NotificationKindOrderAssigned, Message: fmt.Sprintf("A courier is on the way for order %s", order.ID), Payload: orderPayload(order)},
	)
	return order, nil
}

// Claim is the pull path. The order row lock serialises competing agents and
// the partial unique index on active claims rejects any that slip through.
func (s *service) Claim(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*ClaimResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actor.Role != enums.RoleDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only delivery agents can claim orders")
	}

	var result ClaimResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		agent, err := s.agentForActor(ctx, tx, actor)
		if err != nil {
			return err
		}
		if !agent.IsVerified {
			return pkgerrors.New(pkgerrors.CodeForbidden, "delivery agent is not verified")
		}
		if agent.ZoneID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "delivery profile has no zone")
		}
		if !agent.IsAvailable {
			return pkgerrors.New(pkgerrors.CodeConflict, "delivery agent is not available")
		}

		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.DeliveryID != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery agent")
		}
		if order.Status != enums.OrderStatusProcessing {
			return pkgerrors.InvalidTransition(order.Status.String(), enums.OrderStatusAssigned.String())
		}
		if !sameZone(order.DeliveryZoneID, agent.ZoneID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order is outside the agent's zone")
		}
		if _, err := repo.ActiveClaim(ctx, order.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already claimed")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active claim")
		}

		now := s.now()
		claim := &models.DeliveryClaimRequest{
			OrderID:     order.ID,
			DeliveryID:  agent.ID,
			ClaimStatus: enums.ClaimStatusPending,
			ClaimedAt:   now,
		}
		if err := repo.CreateClaim(ctx, claim); err != nil {
			if dbpkg.IsUniqueViolation(err, activeClaimIndex) {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already claimed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert claim")
		}
		result.Claim = claim

		if !s.autoApprove {
			return nil
		}
		if err := s.approve(ctx, tx, claim, order, agent, nil); err != nil {
			return err
		}
		result.Order = order
		return nil
	})
	if err != nil {
		s.metrics.ObserveAssignment("claim", outcome(err))
		return nil, pkgerrors.TxFailure(err, "claim order failed")
	}

	if result.Order != nil {
		s.metrics.ObserveAssignment("claim", "assigned")
		s.notifier.Notify(ctx, notifications.Notice{
			UserID:  result.Order.CustomerID,
			Kind:    enums.NotificationKindOrderAssigned,
			Message: fmt.Sprintf("A courier is on the way for order %s", result.Order.ID),
			Payload: orderPayload(result.Order),
		})
	} else {
		s.metrics.ObserveAssignment("claim", "pending")
	}
	return &result, nil
}

// ApproveClaim decides a pending claim in manual approval mode.
func (s *service) ApproveClaim(ctx context.Context, actor auth.Principal, claimID uuid.UUID) (*ClaimResult, error) {
	if claimID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "claim id required")
	}
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can decide claims")
	}

	var result ClaimResult
	var agent *models.DeliveryPersonnel
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claim, err := s.lockPendingClaim(ctx, tx, claimID)
		if err != nil {
			return err
		}
		order, err := s.lockOrder(ctx, tx, claim.OrderID)
		if err != nil {
			return err
		}
		if order.DeliveryID != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery agent")
		}
		if order.Status != enums.OrderStatusProcessing {
			return pkgerrors.InvalidTransition(order.Status.String(), enums.OrderStatusAssigned.String())
		}
		agent, err = s.lockAgent(ctx, tx, claim.DeliveryID)
		if err != nil {
			return err
		}
		if !agent.IsAvailable {
			return pkgerrors.New(pkgerrors.CodeConflict, "delivery agent is not available")
		}
		decidedBy := actor.UserID
		if err := s.approve(ctx, tx, claim, order, agent, &decidedBy); err != nil {
			return err
		}
		result = ClaimResult{Claim: claim, Order: order}
		return nil
	})
	if err != nil {
		s.metrics.ObserveAssignment("claim_approval", outcome(err))
		return nil, pkgerrors.TxFailure(err, "approve claim failed")
	}
	s.metrics.ObserveAssignment("claim_approval", "assigned")

	s.notifier.Notify(ctx,
		notifications.Notice{UserID: agent.UserID, Kind: enums.NotificationKindOrderAssigned, Message: fmt.Sprintf("Your claim on order %s was approved", result.Order.ID), Payload: orderPayload(result.Order)},
		notifications.Notice{UserID: result.Order.CustomerID, Kind: enums.NotificationKindOrderAssigned, Message: fmt.Sprintf("A courier is on the way for order %s", result.Order.ID), Payload: orderPayload(result.Order)},
	)
	return &result, nil
}

func (s *service) RejectClaim(ctx context.Context, actor auth.Principal, claimID uuid.UUID) (*models.DeliveryClaimRequest, error) {
	if claimID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "claim id required")
	}
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can decide claims")
	}

	var claim *models.DeliveryClaimRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		claim, err = s.lockPendingClaim(ctx, tx, claimID)
		if err != nil {
			return err
		}
		decidedBy := actor.UserID
		if err := s.repo.WithTx(tx).UpdateClaim(ctx, claim.ID, map[string]any{
			"claim_status": enums.ClaimStatusRejected,
			"decided_by":   decidedBy,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject claim")
		}
		claim.ClaimStatus = enums.ClaimStatusRejected
		claim.DecidedBy = &decidedBy
		return nil
	})
	if err != nil {
		return nil, pkgerrors.TxFailure(err, "reject claim failed")
	}
	s.notifyAgent(ctx, claim.DeliveryID, enums.NotificationKindClaimCancelled,
		fmt.Sprintf("Your claim on order %s was rejected", claim.OrderID), claim.OrderID)
	return claim, nil
}

// CancelClaim lets the claiming agent give the order back. An approved claim
// returns the order to pending and frees the agent; a pending claim is
// simply withdrawn.
func (s *service) CancelClaim(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actor.Role != enums.RoleDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only delivery agents can cancel claims")
	}

	var order *models.Order
	var released bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		agent, err := s.agentForActor(ctx, tx, actor)
		if err != nil {
			return err
		}
		order, err = s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		claim, err := repo.ActiveClaim(ctx, order.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no active claim on order")
		} else if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active claim")
		}
		if claim.DeliveryID != agent.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "claim belongs to another agent")
		}

		now := s.now()
		if claim.ClaimStatus == enums.ClaimStatusPending {
			return s.cancelClaimRow(ctx, repo, claim.ID)
		}

		if err := orders.EnsureTransition(order.Status, enums.OrderStatusPending); err != nil {
			return err
		}
		if err := s.Release(ctx, tx, order, actor.UserID); err != nil {
			return err
		}
		if err := s.orders.WithTx(tx).UpdateOrder(ctx, order.ID, map[string]any{
			"status":                  enums.OrderStatusPending,
			"delivery_id":             nil,
			"estimated_delivery_time": nil,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return order to pending")
		}
		order.Status = enums.OrderStatusPending
		order.DeliveryID = nil
		order.EstimatedDeliveryTime = nil
		released = true

		return s.track(ctx, tx, order.ID, enums.TrackingStatusUnassigned, "claim cancelled by delivery agent", actor.UserID, now)
	})
	if err != nil {
		return nil, pkgerrors.TxFailure(err, "cancel claim failed")
	}

	if released {
		s.notifier.Notify(ctx, notifications.Notice{
			UserID:  order.CustomerID,
			Kind:    enums.NotificationKindClaimCancelled,
			Message: fmt.Sprintf("Order %s is waiting for a new courier", order.ID),
			Payload: orderPayload(order),
		})
	}
	return order, nil
}

// AgentByUser resolves the delivery profile of a user account. tx may be nil.
func (s *service) AgentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.DeliveryPersonnel, error) {
	profile, err := s.repo.WithTx(tx).FindProfileByUser(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, "delivery profile not found", "load delivery profile")
	}
	return profile, nil
}

// AgentByID resolves a delivery profile by id. tx may be nil.
func (s *service) AgentByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.DeliveryPersonnel, error) {
	profile, err := s.repo.WithTx(tx).FindProfile(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "delivery profile not found", "load delivery profile")
	}
	return profile, nil
}

// Release cancels the active assignment and claim of an order and frees the
// agent. The order row itself is left to the caller.
func (s *service) Release(ctx context.Context, tx *gorm.DB, order *models.Order, _ uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	now := s.now()

	assignment, err := repo.ActiveAssignment(ctx, order.ID)
	switch {
	case err == nil:
		if err := repo.UpdateAssignment(ctx, assignment.ID, map[string]any{
			"status":       enums.AssignmentStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel assignment")
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
	}

	claim, err := repo.ActiveClaim(ctx, order.ID)
	switch {
	case err == nil:
		if err := s.cancelClaimRow(ctx, repo, claim.ID); err != nil {
			return err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active claim")
	}

	if order.DeliveryID != nil {
		if err := repo.UpdateProfile(ctx, *order.DeliveryID, map[string]any{"is_available": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release delivery agent")
		}
	}
	return nil
}

// Complete closes the active assignment, frees the agent, counts the
// delivery and credits the delivery fee to the agent. Completing an order
// without an active assignment is a no-op.
func (s *service) Complete(ctx context.Context, tx *gorm.DB, order *models.Order, actorID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	assignment, err := repo.ActiveAssignment(ctx, order.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
	}

	now := s.now()
	if err := repo.UpdateAssignment(ctx, assignment.ID, map[string]any{
		"status":       enums.AssignmentStatusCompleted,
		"completed_at": now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete assignment")
	}
	if err := repo.UpdateProfile(ctx, assignment.DeliveryID, map[string]any{"is_available": true}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release delivery agent")
	}
	if err := repo.IncrementDeliveries(ctx, assignment.DeliveryID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count delivery")
	}

	beneficiary := assignment.DeliveryID
	actor := actorID
	if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
		OrderID:       order.ID,
		BeneficiaryID: &beneficiary,
		ActorID:       &actor,
		Type:          enums.LedgerEventTypeDeliveryEarning,
		Amount:        order.DeliveryFee,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record delivery earning")
	}
	return nil
}

// EnsureProfile creates the caller's delivery profile, or returns the
// existing one. The bool reports whether a profile was created.
func (s *service) EnsureProfile(ctx context.Context, actor auth.Principal, zoneID *uuid.UUID) (*models.DeliveryPersonnel, bool, error) {
	if actor.Role != enums.RoleDelivery {
		return nil, false, pkgerrors.New(pkgerrors.CodeForbidden, "only delivery accounts have delivery profiles")
	}
	if existing, err := s.repo.FindProfileByUser(ctx, actor.UserID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery profile")
	}
	if err := s.checkZone(ctx, zoneID); err != nil {
		return nil, false, err
	}

	profile := &models.DeliveryPersonnel{
		UserID:      actor.UserID,
		ZoneID:      zoneID,
		IsAvailable: true,
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			existing, findErr := s.repo.FindProfileByUser(ctx, actor.UserID)
			if findErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery profile")
	}
	return profile, true, nil
}

func (s *service) SetAvailability(ctx context.Context, actor auth.Principal, available bool) (*models.DeliveryPersonnel, error) {
	if actor.Role != enums.RoleDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only delivery accounts have delivery profiles")
	}
	profile, err := s.AgentByUser(ctx, nil, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProfile(ctx, profile.ID, map[string]any{"is_available": available}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update availability")
	}
	profile.IsAvailable = available
	return profile, nil
}

// VerifyAgent marks an agent as verified and optionally moves it to a zone.
func (s *service) VerifyAgent(ctx context.Context, actor auth.Principal, deliveryID uuid.UUID, zoneID *uuid.UUID) (*models.DeliveryPersonnel, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins verify delivery agents")
	}
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if err := s.checkZone(ctx, zoneID); err != nil {
		return nil, err
	}
	profile, err := s.AgentByID(ctx, nil, deliveryID)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{"is_verified": true}
	if zoneID != nil {
		updates["zone_id"] = *zoneID
		profile.ZoneID = zoneID
	}
	if err := s.repo.UpdateProfile(ctx, profile.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify delivery agent")
	}
	profile.IsVerified = true
	return profile, nil
}

func (s *service) AssignedOrders(ctx context.Context, actor auth.Principal) ([]models.Order, error) {
	profile, err := s.agentForActor(ctx, nil, actor)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListAssignedOrders(ctx, profile.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assigned orders")
	}
	return list, nil
}

func (s *service) Earnings(ctx context.Context, actor auth.Principal) (decimal.Decimal, error) {
	profile, err := s.agentForActor(ctx, nil, actor)
	if err != nil {
		return decimal.Zero, err
	}
	total, err := s.ledger.Earnings(ctx, profile.ID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum delivery earnings")
	}
	return total, nil
}

// approve performs the four assignment writes for a claim and takes the
// agent off the market.
func (s *service) approve(ctx context.Context, tx *gorm.DB, claim *models.DeliveryClaimRequest, order *models.Order, agent *models.DeliveryPersonnel, decidedBy *uuid.UUID) error {
	now := s.now()
	updates := map[string]any{
		"claim_status": enums.ClaimStatusApproved,
		"approved_at":  now,
	}
	if decidedBy != nil {
		updates["decided_by"] = *decidedBy
	}
	if err := s.repo.WithTx(tx).UpdateClaim(ctx, claim.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve claim")
	}
	claim.ClaimStatus = enums.ClaimStatusApproved
	claim.ApprovedAt = &now
	claim.DecidedBy = decidedBy

	if err := s.bind(ctx, tx, order, agent, agent.UserID, "claimed by delivery agent", now); err != nil {
		return err
	}
	if err := s.repo.WithTx(tx).UpdateProfile(ctx, agent.ID, map[string]any{"is_available": false}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve delivery agent")
	}
	agent.IsAvailable = false
	return nil
}

// bind writes the assignment row, the tracking row and the order binding.
func (s *service) bind(ctx context.Context, tx *gorm.DB, order *models.Order, agent *models.DeliveryPersonnel, assignedBy uuid.UUID, notes string, start time.Time) error {
	if err := orders.EnsureTransition(order.Status, enums.OrderStatusAssigned); err != nil {
		return err
	}
	now := s.now()
	assignment := &models.DeliveryAssignment{
		OrderID:    order.ID,
		DeliveryID: agent.ID,
		AssignedBy: assignedBy,
		Status:     enums.AssignmentStatusAssigned,
		AssignedAt: now,
	}
	if notes != "" {
		assignment.Notes = &notes
	}
	if err := s.repo.WithTx(tx).CreateAssignment(ctx, assignment); err != nil {
		if dbpkg.IsUniqueViolation(err, activeAssignmentIndex) {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has an active assignment")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert assignment")
	}

	eta := start.Add(s.eta)
	agentID := agent.ID
	if err := s.orders.WithTx(tx).UpdateOrder(ctx, order.ID, map[string]any{
		"status":                  enums.OrderStatusAssigned,
		"delivery_id":             agentID,
		"estimated_delivery_time": eta,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind order")
	}
	order.Status = enums.OrderStatusAssigned
	order.DeliveryID = &agentID
	order.EstimatedDeliveryTime = &eta

	return s.track(ctx, tx, order.ID, enums.TrackingStatusAssigned, notes, assignedBy, now)
}

// ensureAssignable rejects orders that already have an agent or are past
// the point where one can be attached.
func (s *service) ensureAssignable(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.DeliveryID != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery agent")
	}
	if _, err := s.repo.WithTx(tx).ActiveAssignment(ctx, order.ID); err == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "order already has an active assignment")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
	}
	if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusProcessing {
		return pkgerrors.InvalidTransition(order.Status.String(), enums.OrderStatusAssigned.String())
	}
	return nil
}

func (s *service) lockOrder(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.WithTx(tx).LockOrder(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "order not found", "load order")
	}
	return order, nil
}

func (s *service) lockAgent(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.DeliveryPersonnel, error) {
	agent, err := s.repo.WithTx(tx).LockProfile(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "delivery agent not found", "load delivery agent")
	}
	return agent, nil
}

func (s *service) lockPendingClaim(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.DeliveryClaimRequest, error) {
	claim, err := s.repo.WithTx(tx).LockClaim(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "claim not found", "load claim")
	}
	if claim.ClaimStatus != enums.ClaimStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "claim already decided").
			WithDetails(map[string]any{"claim_status": claim.ClaimStatus.String()})
	}
	return claim, nil
}

// agentForActor requires an existing profile; agents are never provisioned
// implicitly.
func (s *service) agentForActor(ctx context.Context, tx *gorm.DB, actor auth.Principal) (*models.DeliveryPersonnel, error) {
	if actor.Role != enums.RoleDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery account required")
	}
	profile, err := s.repo.WithTx(tx).FindProfileByUser(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery profile not found; create one first")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery profile")
	}
	return profile, nil
}

func (s *service) cancelClaimRow(ctx context.Context, repo Repository, id uuid.UUID) error {
	if err := repo.UpdateClaim(ctx, id, map[string]any{"claim_status": enums.ClaimStatusCancelled}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel claim")
	}
	return nil
}

func (s *service) checkZone(ctx context.Context, zoneID *uuid.UUID) error {
	if zoneID == nil {
		return nil
	}
	ok, err := s.repo.ZoneExists(ctx, *zoneID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load zone")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery zone").
			WithDetails(map[string]any{"zone_id": zoneID.String()})
	}
	return nil
}

func (s *service) track(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.TrackingStatus, notes string, actorID uuid.UUID, at time.Time) error {
	actor := actorID
	if _, err := s.tracking.WithTx(tx).Append(ctx, tracking.Entry{
		OrderID: orderID,
		Status:  status,
		Notes:   notes,
		ActorID: &actor,
		At:      at,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking")
	}
	return nil
}

func (s *service) notifyAgent(ctx context.Context, deliveryID uuid.UUID, kind enums.NotificationKind, msg string, orderID uuid.UUID) {
	agent, err := s.AgentByID(ctx, nil, deliveryID)
	if err != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "agent lookup for notification failed")
		return
	}
	s.notifier.Notify(ctx, notifications.Notice{
		UserID:  agent.UserID,
		Kind:    kind,
		Message: msg,
		Payload: map[string]any{"order_id": orderID.String()},
	})
}

// sameZone treats an order without a zone as reachable from every zone.
func sameZone(orderZone, agentZone *uuid.UUID) bool {
	if orderZone == nil {
		return true
	}
	return agentZone != nil && *agentZone == *orderZone
}

func orderPayload(order *models.Order) map[string]any {
	return map[string]any{"order_id": order.ID.String(), "status": order.Status.String()}
}

func outcome(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeConflict:
		return "conflict"
	case pkgerrors.CodeStateConflict:
		return "invalid_state"
	case pkgerrors.CodeForbidden:
		return "forbidden"
	case pkgerrors.CodeNotFound:
		return "not_found"
	}
	return "error"
}

func mapNotFound(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
