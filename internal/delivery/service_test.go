package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/fulfillment-engine/internal/ledger"
	"github.com/angelmondragon/fulfillment-engine/internal/notifications"
	"github.com/angelmondragon/fulfillment-engine/internal/orders"
	"github.com/angelmondragon/fulfillment-engine/internal/tracking"
	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notifications.Notice
}

func (r *recordingNotifier) Notify(_ context.Context, notices ...notifications.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notices...)
}

type env struct {
	client   *db.Client
	db       *gorm.DB
	svc      AssignmentService
	matcher  *Matcher
	ledger   ledger.Service
	notifier *recordingNotifier
	zone     models.Zone
	vendor   models.Vendor
	staff    auth.Principal
}

func newEnv(t *testing.T, autoApprove bool) *env {
	t.Helper()
	client, conn := dbtest.Client(t)

	zone := models.Zone{Name: "north", DeliveryFee: decimal.RequireFromString("4.50"), EstimatedHours: 24}
	require.NoError(t, conn.Create(&zone).Error)
	vendor := models.Vendor{UserID: uuid.New(), Name: "acme", Tier: enums.VendorTierPro}
	require.NoError(t, conn.Create(&vendor).Error)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Repo:        repo,
		Orders:      orders.NewRepository(conn),
		Tx:          client,
		Tracking:    tracking.NewRepository(conn),
		Ledger:      ledgerSvc,
		Notifier:    notifier,
		AutoApprove: autoApprove,
	})
	require.NoError(t, err)

	return &env{
		client:   client,
		db:       conn,
		svc:      svc,
		matcher:  NewMatcher(repo, orders.NewRepository(conn)),
		ledger:   ledgerSvc,
		notifier: notifier,
		zone:     zone,
		vendor:   vendor,
		staff:    auth.Principal{UserID: uuid.New(), Role: enums.RoleOrderManager},
	}
}

func (e *env) order(t *testing.T, status enums.OrderStatus, zoneID *uuid.UUID) *models.Order {
	t.Helper()
	order := &models.Order{
		CustomerID:     uuid.New(),
		VendorID:       e.vendor.ID,
		SplitGroupID:   uuid.New(),
		Status:         status,
		PaymentMethod:  enums.PaymentMethodCard,
		Subtotal:       decimal.NewFromInt(40),
		DeliveryFee:    e.zone.DeliveryFee,
		Total:          decimal.NewFromInt(40).Add(e.zone.DeliveryFee),
		PlacedAt:       time.Now().UTC(),
		DeliveryZoneID: zoneID,
	}
	require.NoError(t, e.db.Create(order).Error)
	return order
}

func (e *env) agent(t *testing.T, zoneID *uuid.UUID, rating float64, deliveries int, verified, available bool) (*models.DeliveryPersonnel, auth.Principal) {
	t.Helper()
	agent := &models.DeliveryPersonnel{
		UserID:          uuid.New(),
		ZoneID:          zoneID,
		Rating:          rating,
		TotalDeliveries: deliveries,
	}
	require.NoError(t, e.db.Create(agent).Error)
	require.NoError(t, e.db.Model(agent).Updates(map[string]any{"is_verified": verified, "is_available": available}).Error)
	agent.IsVerified = verified
	agent.IsAvailable = available
	return agent, auth.Principal{UserID: agent.UserID, Role: enums.RoleDelivery}
}

func (e *env) reload(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, e.db.First(&order, "id = ?", id).Error)
	return &order
}

func (e *env) profile(t *testing.T, id uuid.UUID) *models.DeliveryPersonnel {
	t.Helper()
	var p models.DeliveryPersonnel
	require.NoError(t, e.db.First(&p, "id = ?", id).Error)
	return &p
}

func (e *env) activeAssignments(t *testing.T, orderID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.DeliveryAssignment{}).
		Where("order_id = ? AND status = ?", orderID, enums.AssignmentStatusAssigned).
		Count(&n).Error)
	return n
}

func (e *env) trackingStatuses(t *testing.T, orderID uuid.UUID) []enums.TrackingStatus {
	t.Helper()
	rows, err := tracking.NewRepository(e.db).ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	out := make([]enums.TrackingStatus, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Status)
	}
	return out
}

// assertBinding checks that an agent is bound exactly while the order is
// in a delivery state.
func assertBinding(t *testing.T, order *models.Order) {
	t.Helper()
	bound := map[enums.OrderStatus]bool{
		enums.OrderStatusAssigned:  true,
		enums.OrderStatusPickedUp:  true,
		enums.OrderStatusInTransit: true,
		enums.OrderStatusDelivered: true,
		enums.OrderStatusReturned:  true,
	}
	assert.Equal(t, bound[order.Status], order.DeliveryID != nil, "status %s delivery_id %v", order.Status, order.DeliveryID)
}

func TestAssignThenAssignAgainConflicts(t *testing.T) {
	e := newEnv(t, true)
	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
	a, _ := e.agent(t, &e.zone.ID, 4.5, 3, true, true)
	b, _ := e.agent(t, &e.zone.ID, 4.0, 1, true, true)
	ctx := context.Background()

	before := time.Now().UTC()
	assigned, err := e.svc.Assign(ctx, e.staff, AssignInput{OrderID: order.ID, DeliveryID: a.ID, Notes: "fragile"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAssigned, assigned.Status)
	require.NotNil(t, assigned.EstimatedDeliveryTime)
	assert.WithinDuration(t, before.Add(24*time.Hour), *assigned.EstimatedDeliveryTime, time.Minute)

	_, err = e.svc.Assign(ctx, e.staff, AssignInput{OrderID: order.ID, DeliveryID: b.ID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	stored := e.reload(t, order.ID)
	require.NotNil(t, stored.DeliveryID)
	assert.Equal(t, a.ID, *stored.DeliveryID)
	assert.Equal(t, int64(1), e.activeAssignments(t, order.ID))
	assert.Equal(t, []enums.TrackingStatus{enums.TrackingStatusAssigned}, e.trackingStatuses(t, order.ID))
	assertBinding(t, stored)

	count, err := e.matcher.ActiveAssignmentCount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAssignUsesPickupTime(t *testing.T) {
	e := newEnv(t, true)
	order := e.order(t, enums.OrderStatusPending, &e.zone.ID)
	a, _ := e.agent(t, &e.zone.ID, 4, 0, true, true)
	pickup := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assigned, err := e.svc.Assign(context.Background(), e.staff, AssignInput{OrderID: order.ID, DeliveryID: a.ID, PickupTime: &pickup})
	require.NoError(t, err)
	assert.True(t, pickup.Add(24*time.Hour).Equal(*assigned.EstimatedDeliveryTime))
}

func TestAssignRejectsUnavailableAndFinishedOrders(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	busy, _ := e.agent(t, &e.zone.ID, 4, 0, true, false)
	free, _ := e.agent(t, &e.zone.ID, 4, 0, true, true)

	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
	_, err := e.svc.Assign(ctx, e.staff, AssignInput{OrderID: order.ID, DeliveryID: busy.ID})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	cancelled := e.order(t, enums.OrderStatusCancelled, &e.zone.ID)
	_, err = e.svc.Assign(ctx, e.staff, AssignInput{OrderID: cancelled.ID, DeliveryID: free.ID})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	_, err = e.svc.Assign(ctx, e.staff, AssignInput{OrderID: order.ID, DeliveryID: uuid.New()})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = e.svc.Assign(ctx, auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}, AssignInput{OrderID: order.ID, DeliveryID: free.ID})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestVendorAssignConstraints(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	vendorID := e.vendor.ID
	vendor := auth.Principal{UserID: e.vendor.UserID, Role: enums.RoleVendor, VendorID: &vendorID}
	otherZone := models.Zone{Name: "south", DeliveryFee: decimal.NewFromInt(3)}
	require.NoError(t, e.db.Create(&otherZone).Error)

	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
	unverified, _ := e.agent(t, &e.zone.ID, 5, 0, false, true)
	elsewhere, _ := e.agent(t, &otherZone.ID, 5, 0, true, true)
	local, _ := e.agent(t, &e.zone.ID, 3, 0, true, true)

	_, err := e.svc.Assign(ctx, vendor, AssignInput{OrderID: order.ID, DeliveryID: unverified.ID})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	_, err = e.svc.Assign(ctx, vendor, AssignInput{OrderID: order.ID, DeliveryID: elsewhere.ID})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	strangerID := uuid.New()
	stranger := auth.Principal{UserID: uuid.New(), Role: enums.RoleVendor, VendorID: &strangerID}
	_, err = e.svc.Assign(ctx, stranger, AssignInput{OrderID: order.ID, DeliveryID: local.ID})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = e.svc.Assign(ctx, vendor, AssignInput{OrderID: order.ID, DeliveryID: local.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.activeAssignments(t, order.ID))
}

func TestConcurrentClaimsExactlyOneWins(t *testing.T) {
	e := newEnv(t, true)
	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
	first, firstActor := e.agent(t, &e.zone.ID, 4, 0, true, true)
	second, secondActor := e.agent(t, &e.zone.ID, 4, 0, true, true)

	actors := []auth.Principal{firstActor, secondActor}
	errs := make([]error, len(actors))
	var g errgroup.Group
	for i, actor := range actors {
		g.Go(func() error {
			_, errs[i] = e.svc.Claim(context.Background(), actor, order.ID)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err), "loser must see a conflict: %v", err)
	}
	assert.Equal(t, 1, wins)

	stored := e.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusAssigned, stored.Status)
	require.NotNil(t, stored.DeliveryID)
	assert.Contains(t, []uuid.UUID{first.ID, second.ID}, *stored.DeliveryID)
	assert.Equal(t, int64(1), e.activeAssignments(t, order.ID))
	assert.False(t, e.profile(t, *stored.DeliveryID).IsAvailable, "approved claims take the agent off the market")
	assertBinding(t, stored)
}

func TestClaimPreconditions(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	otherZone := models.Zone{Name: "south"}
	require.NoError(t, e.db.Create(&otherZone).Error)

	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)

	_, err := e.svc.Claim(ctx, auth.Principal{UserID: uuid.New(), Role: enums.RoleDelivery}, order.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err), "no implicit profile")

	_, far := e.agent(t, &otherZone.ID, 5, 0, true, true)
	_, err = e.svc.Claim(ctx, far, order.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, unverified := e.agent(t, &e.zone.ID, 5, 0, false, true)
	_, err = e.svc.Claim(ctx, unverified, order.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err), "claims need a verified profile")

	_, unzoned := e.agent(t, nil, 5, 0, true, true)
	_, err = e.svc.Claim(ctx, unzoned, order.ID)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, local := e.agent(t, &e.zone.ID, 5, 0, true, true)
	pending := e.order(t, enums.OrderStatusPending, &e.zone.ID)
	_, err = e.svc.Claim(ctx, local, pending.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	_, err = e.svc.Claim(ctx, e.staff, order.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestManualClaimApproval(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
	agent, actor := e.agent(t, &e.zone.ID, 4, 0, true, true)
	_, rival := e.agent(t, &e.zone.ID, 4, 0, true, true)

	res, err := e.svc.Claim(ctx, actor, order.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Order)
	assert.Equal(t, enums.ClaimStatusPending, res.Claim.ClaimStatus)
	assert.Equal(t, enums.OrderStatusProcessing, e.reload(t, order.ID).Status)

	_, err = e.svc.Claim(ctx, rival, order.ID)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err), "one active claim per order")

	_, err = e.svc.ApproveClaim(ctx, actor, res.Claim.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	approved, err := e.svc.ApproveClaim(ctx, e.staff, res.Claim.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ClaimStatusApproved, approved.Claim.ClaimStatus)
	assert.Equal(t, enums.OrderStatusAssigned, approved.Order.Status)
	assert.Equal(t, agent.ID, *approved.Order.DeliveryID)

	_, err = e.svc.ApproveClaim(ctx, e.staff, res.Claim.ID)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
	_, err = e.svc.RejectClaim(ctx, e.staff, res.Claim.ID)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestRejectClaimFreesOrder(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
	_, actor := e.agent(t, &e.zone.ID, 4, 0, true, true)
	_, rival := e.agent(t, &e.zone.ID, 4, 0, true, true)

	res, err := e.svc.Claim(ctx, actor, order.ID)
	require.NoError(t, err)
	rejected, err := e.svc.RejectClaim(ctx, e.staff, res.Claim.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ClaimStatusRejected, rejected.ClaimStatus)

	_, err = e.svc.Claim(ctx, rival, order.ID)
	assert.NoError(t, err)
}

func TestCancelClaimReturnsOrderToPending(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
	agent, actor := e.agent(t, &e.zone.ID, 4, 0, true, true)
	other, otherActor := e.agent(t, &e.zone.ID, 4, 0, true, true)

	_, err := e.svc.Claim(ctx, actor, order.ID)
	require.NoError(t, err)

	_, err = e.svc.CancelClaim(ctx, otherActor, order.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	back, err := e.svc.CancelClaim(ctx, actor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, back.Status)
	assert.Nil(t, back.DeliveryID)

	stored := e.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Nil(t, stored.DeliveryID)
	assert.Nil(t, stored.EstimatedDeliveryTime)
	assertBinding(t, stored)
	assert.Zero(t, e.activeAssignments(t, order.ID))
	assert.True(t, e.profile(t, agent.ID).IsAvailable)
	assert.Equal(t,
		[]enums.TrackingStatus{enums.TrackingStatusAssigned, enums.TrackingStatusUnassigned},
		e.trackingStatuses(t, order.ID))

	_, err = e.svc.CancelClaim(ctx, actor, order.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	// The cancelled rows no longer block a fresh push assignment.
	_, err = e.svc.Assign(ctx, e.staff, AssignInput{OrderID: order.ID, DeliveryID: other.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.activeAssignments(t, order.ID))
}

func TestCompleteCreditsAgentOnce(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
	agent, _ := e.agent(t, &e.zone.ID, 4, 2, true, true)

	assigned, err := e.svc.Assign(ctx, e.staff, AssignInput{OrderID: order.ID, DeliveryID: agent.ID})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, e.client.WithTx(ctx, func(tx *gorm.DB) error {
			return e.svc.Complete(ctx, tx, assigned, e.staff.UserID)
		}))
	}

	p := e.profile(t, agent.ID)
	assert.Equal(t, 3, p.TotalDeliveries)
	assert.True(t, p.IsAvailable)
	assert.Zero(t, e.activeAssignments(t, order.ID))

	earned, err := e.ledger.Earnings(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "4.50", earned.StringFixed(2))

	total, err := e.svc.Earnings(ctx, auth.Principal{UserID: agent.UserID, Role: enums.RoleDelivery})
	require.NoError(t, err)
	assert.True(t, total.Equal(earned))
}

func TestEnsureProfileIsIdempotent(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	actor := auth.Principal{UserID: uuid.New(), Role: enums.RoleDelivery}

	unknown := uuid.New()
	_, _, err := e.svc.EnsureProfile(ctx, actor, &unknown)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	created, isNew, err := e.svc.EnsureProfile(ctx, actor, &e.zone.ID)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, created.IsAvailable)
	assert.False(t, created.IsVerified)

	again, isNew, err := e.svc.EnsureProfile(ctx, actor, nil)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, again.ID)

	_, _, err = e.svc.EnsureProfile(ctx, e.staff, nil)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	off, err := e.svc.SetAvailability(ctx, actor, false)
	require.NoError(t, err)
	assert.False(t, off.IsAvailable)
	assert.False(t, e.profile(t, created.ID).IsAvailable)
}

func TestVerifyAgent(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	agent, _ := e.agent(t, nil, 0, 0, false, true)

	_, err := e.svc.VerifyAgent(ctx, e.staff, agent.ID, nil)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err), "order managers cannot verify")

	admin := auth.Principal{UserID: uuid.New(), Role: enums.RoleAdmin}
	verified, err := e.svc.VerifyAgent(ctx, admin, agent.ID, &e.zone.ID)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	stored := e.profile(t, agent.ID)
	assert.True(t, stored.IsVerified)
	require.NotNil(t, stored.ZoneID)
	assert.Equal(t, e.zone.ID, *stored.ZoneID)
}

func TestDeliveredThroughLifecycleCompletesAssignment(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
	agent, actor := e.agent(t, &e.zone.ID, 4, 0, true, true)

	lifecycle := newLifecycle(t, e)

	_, err := e.svc.Claim(ctx, actor, order.ID)
	require.NoError(t, err)
	assertBinding(t, e.reload(t, order.ID))

	for _, status := range []enums.DeliveryStatus{enums.DeliveryStatusPickedUp, enums.DeliveryStatusInTransit} {
		_, err := lifecycle.UpdateDeliveryStatus(ctx, actor, orders.DeliveryStatusInput{OrderID: order.ID, Status: status})
		require.NoError(t, err)
		assertBinding(t, e.reload(t, order.ID))
	}

	_, err = lifecycle.UpdateDeliveryStatus(ctx, actor, orders.DeliveryStatusInput{OrderID: order.ID, Status: enums.DeliveryStatusDelivered})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	delivered, err := lifecycle.UpdateDeliveryStatus(ctx, actor, orders.DeliveryStatusInput{
		OrderID: order.ID,
		Status:  enums.DeliveryStatusDelivered,
		Photo:   testPhoto(),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, delivered.Status)

	stored := e.reload(t, order.ID)
	assertBinding(t, stored)
	require.NotNil(t, stored.ActualDeliveryTime)
	assert.Zero(t, e.activeAssignments(t, order.ID))
	p := e.profile(t, agent.ID)
	assert.True(t, p.IsAvailable)
	assert.Equal(t, 1, p.TotalDeliveries)
	assert.Contains(t, e.trackingStatuses(t, order.ID), enums.TrackingStatusDelivered)

	var payable models.VendorPayment
	require.NoError(t, e.db.First(&payable, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.VendorPaymentStatusApproved, payable.PaymentStatus, "card orders release the vendor payable on delivery")
}

func TestLifecycleCancelReleasesAgent(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
	agent, actor := e.agent(t, &e.zone.ID, 4, 0, true, true)
	lifecycle := newLifecycle(t, e)

	_, err := e.svc.Claim(ctx, actor, order.ID)
	require.NoError(t, err)

	_, err = lifecycle.CancelOrder(ctx, e.staff, order.ID, "customer unreachable")
	require.NoError(t, err)

	stored := e.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assertBinding(t, stored)
	assert.Zero(t, e.activeAssignments(t, order.ID))
	assert.True(t, e.profile(t, agent.ID).IsAvailable)

	var claim models.DeliveryClaimRequest
	require.NoError(t, e.db.First(&claim, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.ClaimStatusCancelled, claim.ClaimStatus)
}
