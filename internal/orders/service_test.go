package orders

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/fulfillment-engine/internal/catalog"
	"github.com/angelmondragon/fulfillment-engine/internal/commission"
	"github.com/angelmondragon/fulfillment-engine/internal/ledger"
	"github.com/angelmondragon/fulfillment-engine/internal/notifications"
	"github.com/angelmondragon/fulfillment-engine/internal/tracking"
	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/storage"
	"github.com/angelmondragon/fulfillment-engine/pkg/storage/storagetest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubCourier struct {
	agents    map[uuid.UUID]*models.DeliveryPersonnel
	released  []uuid.UUID
	completed []uuid.UUID
}

func (c *stubCourier) AgentByUser(_ context.Context, _ *gorm.DB, userID uuid.UUID) (*models.DeliveryPersonnel, error) {
	if a, ok := c.agents[userID]; ok {
		return a, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery profile not found")
}

func (c *stubCourier) AgentByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.DeliveryPersonnel, error) {
	for _, a := range c.agents {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery profile not found")
}

func (c *stubCourier) Release(_ context.Context, _ *gorm.DB, order *models.Order, _ uuid.UUID) error {
	c.released = append(c.released, order.ID)
	return nil
}

func (c *stubCourier) Complete(_ context.Context, _ *gorm.DB, order *models.Order, _ uuid.UUID) error {
	c.completed = append(c.completed, order.ID)
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notifications.Notice
}

func (r *recordingNotifier) Notify(_ context.Context, notices ...notifications.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notices...)
}

type fixture struct {
	client   *db.Client
	db       *gorm.DB
	svc      Service
	courier  *stubCourier
	photos   *storagetest.Memory
	notifier *recordingNotifier
	vendor   models.Vendor
	product  models.Product
	customer uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, conn := dbtest.Client(t)

	vendor := models.Vendor{UserID: uuid.New(), Name: "acme", Tier: enums.VendorTierBasic}
	require.NoError(t, conn.Create(&vendor).Error)
	product := models.Product{VendorID: vendor.ID, Name: "lamp", Price: decimal.NewFromInt(20), Stock: 10}
	require.NoError(t, conn.Create(&product).Error)

	f := &fixture{
		db:       conn,
		courier:  &stubCourier{agents: map[uuid.UUID]*models.DeliveryPersonnel{}},
		photos:   storagetest.NewMemory(),
		notifier: &recordingNotifier{},
		vendor:   vendor,
		product:  product,
		customer: uuid.New(),
	}
	f.client = client
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	payables, err := commission.NewService(commission.ServiceParams{
		Repo:   commission.NewRepository(conn),
		Tx:     client,
		Ledger: ledgerSvc,
		Rates:  commission.NewRateResolver(decimal.NewFromInt(10)),
	})
	require.NoError(t, err)
	f.svc = f.build(t, payables)
	return f
}

func (f *fixture) build(t *testing.T, payables PayableApprover) Service {
	t.Helper()
	gw := catalog.NewGateway(f.db)
	svc, err := NewService(Dependencies{
		Repo:     NewRepository(f.db),
		Tx:       f.client,
		Tracking: tracking.NewRepository(f.db),
		Stock:    gw,
		Courier:  f.courier,
		Payables: payables,
		Vendors:  gw,
		Photos:   f.photos,
		Notifier: f.notifier,
	})
	require.NoError(t, err)
	return svc
}

type failingPayables struct{}

func (failingPayables) ApproveForOrder(context.Context, *gorm.DB, uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeDependency, "payables offline")
}

func (f *fixture) payable(t *testing.T, orderID uuid.UUID) models.VendorPayment {
	t.Helper()
	var vp models.VendorPayment
	require.NoError(t, f.db.First(&vp, "order_id = ?", orderID).Error)
	return vp
}

func (f *fixture) order(t *testing.T, status enums.OrderStatus, method enums.PaymentMethod, qty int) *models.Order {
	t.Helper()
	price := decimal.NewFromInt(20)
	order := &models.Order{
		CustomerID:         f.customer,
		VendorID:           f.vendor.ID,
		SplitGroupID:       uuid.New(),
		Status:             status,
		ConfirmationStatus: enums.ConfirmationStatusPending,
		PaymentMethod:      method,
		Subtotal:           price.Mul(decimal.NewFromInt(int64(qty))),
		Total:              price.Mul(decimal.NewFromInt(int64(qty))),
		PlacedAt:           time.Now().UTC(),
		Items: []models.OrderItem{{
			ProductID:  f.product.ID,
			Qty:        qty,
			UnitPrice:  price,
			FinalPrice: price,
			TotalPrice: price.Mul(decimal.NewFromInt(int64(qty))),
		}},
	}
	require.NoError(t, NewRepository(f.db).CreateOrder(context.Background(), order))
	return order
}

func (f *fixture) bindAgent(t *testing.T, order *models.Order, status enums.OrderStatus) auth.Principal {
	t.Helper()
	agent := &models.DeliveryPersonnel{ID: uuid.New(), UserID: uuid.New(), IsAvailable: false, IsVerified: true}
	f.courier.agents[agent.UserID] = agent
	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Updates(map[string]any{"delivery_id": agent.ID, "status": status}).Error)
	return auth.Principal{UserID: agent.UserID, Role: enums.RoleDelivery}
}

func (f *fixture) vendorActor() auth.Principal {
	id := f.vendor.ID
	return auth.Principal{UserID: f.vendor.UserID, Role: enums.RoleVendor, VendorID: &id}
}

func (f *fixture) customerActor() auth.Principal {
	return auth.Principal{UserID: f.customer, Role: enums.RoleCustomer}
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.First(&p, "id = ?", f.product.ID).Error)
	return p.Stock
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	o, err := NewRepository(f.db).FindOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) trackingRows(t *testing.T, id uuid.UUID) []models.DeliveryTracking {
	t.Helper()
	rows, err := tracking.NewRepository(f.db).ListByOrder(context.Background(), id)
	require.NoError(t, err)
	return rows
}

func TestConfirmThenRejectIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	ctx := context.Background()

	confirmed, err := f.svc.ConfirmOrder(ctx, f.vendorActor(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, confirmed.Status)
	assert.Equal(t, enums.ConfirmationStatusConfirmed, confirmed.ConfirmationStatus)

	_, err = f.svc.RejectOrder(ctx, f.vendorActor(), order.ID, "out of stock")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	stored := f.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status, "failed transition must not mutate")
	assert.Equal(t, enums.ConfirmationStatusConfirmed, stored.ConfirmationStatus)
	assert.Len(t, f.trackingRows(t, order.ID), 1)

	kinds := []enums.NotificationKind{}
	for _, n := range f.notifier.notices {
		kinds = append(kinds, n.Kind)
	}
	assert.Contains(t, kinds, enums.NotificationKindOrderConfirmed)
}

func TestDecisionRequiresOwningVendor(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	other := uuid.New()

	_, err := f.svc.ConfirmOrder(context.Background(), auth.Principal{UserID: uuid.New(), Role: enums.RoleVendor, VendorID: &other}, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.ConfirmOrder(context.Background(), f.vendorActor(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRejectDoesNotReleaseStock(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 3)
	before := f.stock(t)

	rejected, err := f.svc.RejectOrder(context.Background(), f.vendorActor(), order.ID, "closed today")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, rejected.Status)
	assert.Equal(t, enums.ConfirmationStatusRejected, rejected.ConfirmationStatus)
	assert.Equal(t, before, f.stock(t))

	rows := f.trackingRows(t, order.ID)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Notes)
	assert.Contains(t, *rows[0].Notes, "closed today")
}

func TestCancelReleasesStockExactlyOnce(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCash, 4)
	before := f.stock(t)
	ctx := context.Background()

	cancelled, err := f.svc.CancelOrder(ctx, f.customerActor(), order.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, before+4, f.stock(t))

	_, err = f.svc.CancelOrder(ctx, f.customerActor(), order.ID, "again")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, before+4, f.stock(t), "second cancel must not restock")
	assert.Len(t, f.trackingRows(t, order.ID), 1)
}

func TestCancelDeliveredIsRejected(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	f.bindAgent(t, order, enums.OrderStatusDelivered)

	_, err := f.svc.CancelOrder(context.Background(), auth.Principal{UserID: uuid.New(), Role: enums.RoleAdmin}, order.ID, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCancelByStrangerIsForbidden(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)

	_, err := f.svc.CancelOrder(context.Background(), auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}, order.ID, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCancelAssignedReleasesCourier(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	f.bindAgent(t, order, enums.OrderStatusAssigned)

	cancelled, err := f.svc.CancelOrder(context.Background(), auth.Principal{UserID: uuid.New(), Role: enums.RoleOrderManager}, order.ID, "")
	require.NoError(t, err)
	assert.Nil(t, cancelled.DeliveryID)
	assert.Equal(t, []uuid.UUID{order.ID}, f.courier.released)

	stored := f.reload(t, order.ID)
	assert.Nil(t, stored.DeliveryID)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
}

func photo(body string) *storage.Photo {
	return &storage.Photo{Filename: "proof.jpg", ContentType: "image/jpeg", Body: strings.NewReader(body)}
}

func TestDeliveredRequiresPhoto(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	agent := f.bindAgent(t, order, enums.OrderStatusInTransit)
	ctx := context.Background()

	_, err := f.svc.UpdateDeliveryStatus(ctx, agent, DeliveryStatusInput{OrderID: order.ID, Status: enums.DeliveryStatusDelivered})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, enums.OrderStatusInTransit, f.reload(t, order.ID).Status)

	delivered, err := f.svc.UpdateDeliveryStatus(ctx, agent, DeliveryStatusInput{
		OrderID: order.ID,
		Status:  enums.DeliveryStatusDelivered,
		Notes:   "left at door",
		Photo:   photo("jpeg"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, delivered.Status)

	stored := f.reload(t, order.ID)
	require.NotNil(t, stored.ActualDeliveryTime)
	require.NotNil(t, stored.DeliveryID, "delivered orders keep their agent")
	assert.Equal(t, 1, f.photos.Len())
	assert.Equal(t, []uuid.UUID{order.ID}, f.courier.completed, "non-cash orders complete on delivery")

	rows := f.trackingRows(t, order.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.TrackingStatusDelivered, rows[0].Status)
	assert.Contains(t, *rows[0].Notes, "photo: orders/")
}

func TestCardDeliveryApprovesVendorPayable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, method := range []enums.PaymentMethod{enums.PaymentMethodCard, enums.PaymentMethodTransfer} {
		order := f.order(t, enums.OrderStatusPending, method, 1)
		agent := f.bindAgent(t, order, enums.OrderStatusInTransit)

		_, err := f.svc.UpdateDeliveryStatus(ctx, agent, DeliveryStatusInput{
			OrderID: order.ID, Status: enums.DeliveryStatusDelivered, Photo: photo("x"),
		})
		require.NoError(t, err)

		vp := f.payable(t, order.ID)
		assert.Equal(t, enums.VendorPaymentStatusApproved, vp.PaymentStatus, method)
		assert.True(t, vp.Amount.Equal(decimal.NewFromInt(20)), method)
	}
}

func TestFailedDeliveryDiscardsUploadedPhoto(t *testing.T) {
	f := newFixture(t)
	svc := f.build(t, failingPayables{})
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	agent := f.bindAgent(t, order, enums.OrderStatusInTransit)

	_, err := svc.UpdateDeliveryStatus(context.Background(), agent, DeliveryStatusInput{
		OrderID: order.ID, Status: enums.DeliveryStatusDelivered, Photo: photo("x"),
	})
	require.Error(t, err)
	assert.Equal(t, enums.OrderStatusInTransit, f.reload(t, order.ID).Status)
	assert.Zero(t, f.photos.Len())
	require.Len(t, f.photos.Deleted, 1)
	assert.True(t, strings.HasPrefix(f.photos.Deleted[0], "orders/"+order.ID.String()))
}

func TestCashDeliveryDefersCompletion(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCash, 1)
	agent := f.bindAgent(t, order, enums.OrderStatusPickedUp)

	_, err := f.svc.UpdateDeliveryStatus(context.Background(), agent, DeliveryStatusInput{
		OrderID: order.ID, Status: enums.DeliveryStatusDelivered, Photo: photo("x"),
	})
	require.NoError(t, err)
	assert.Empty(t, f.courier.completed)
	var count int64
	require.NoError(t, f.db.Model(&models.VendorPayment{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Zero(t, count, "cash payables wait for the payment confirmation")
}

func TestStatusFromUnboundAgentIsForbidden(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	f.bindAgent(t, order, enums.OrderStatusInTransit)

	stranger := &models.DeliveryPersonnel{ID: uuid.New(), UserID: uuid.New()}
	f.courier.agents[stranger.UserID] = stranger

	_, err := f.svc.UpdateDeliveryStatus(context.Background(), auth.Principal{UserID: stranger.UserID, Role: enums.RoleDelivery},
		DeliveryStatusInput{OrderID: order.ID, Status: enums.DeliveryStatusDelivered, Photo: photo("x")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.Equal(t, 0, f.photos.Len(), "rejected callers never upload")

	_, err = f.svc.UpdateDeliveryStatus(context.Background(), f.vendorActor(),
		DeliveryStatusInput{OrderID: order.ID, Status: enums.DeliveryStatusInTransit})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestAdminMayReportStatus(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	f.bindAgent(t, order, enums.OrderStatusAssigned)

	updated, err := f.svc.UpdateDeliveryStatus(context.Background(), auth.Principal{UserID: uuid.New(), Role: enums.RoleAdmin},
		DeliveryStatusInput{OrderID: order.ID, Status: enums.DeliveryStatusPickedUp})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPickedUp, updated.Status)
}

func TestFailedAttemptIsTrackingOnly(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	agent := f.bindAgent(t, order, enums.OrderStatusInTransit)

	updated, err := f.svc.UpdateDeliveryStatus(context.Background(), agent,
		DeliveryStatusInput{OrderID: order.ID, Status: enums.DeliveryStatusFailed, Notes: "nobody home"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusInTransit, updated.Status)

	rows := f.trackingRows(t, order.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.TrackingStatusFailed, rows[0].Status)
}

func TestSkippingStepsIsInvalid(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	agent := f.bindAgent(t, order, enums.OrderStatusAssigned)

	_, err := f.svc.UpdateDeliveryStatus(context.Background(), agent,
		DeliveryStatusInput{OrderID: order.ID, Status: enums.DeliveryStatusDelivered, Photo: photo("x")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, f.trackingRows(t, order.ID))
}

func TestReturnedReleasesCourierAndStock(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 2)
	agent := f.bindAgent(t, order, enums.OrderStatusInTransit)
	before := f.stock(t)

	updated, err := f.svc.UpdateDeliveryStatus(context.Background(), agent,
		DeliveryStatusInput{OrderID: order.ID, Status: enums.DeliveryStatusReturned})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReturned, updated.Status)
	assert.Equal(t, before+2, f.stock(t))
	assert.Equal(t, []uuid.UUID{order.ID}, f.courier.released)
	assert.NotNil(t, f.reload(t, order.ID).DeliveryID)
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	ctx := context.Background()

	_, err := f.svc.GetOrder(ctx, f.customerActor(), order.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, f.vendorActor(), order.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	agent := f.bindAgent(t, order, enums.OrderStatusAssigned)
	_, err = f.svc.ListTracking(ctx, agent, order.ID)
	assert.NoError(t, err)
}

func TestListSplitGroupFiltersVendors(t *testing.T) {
	f := newFixture(t)
	a := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	otherVendor := models.Vendor{UserID: uuid.New(), Name: "other", Tier: enums.VendorTierPro}
	require.NoError(t, f.db.Create(&otherVendor).Error)
	b := f.order(t, enums.OrderStatusPending, enums.PaymentMethodCard, 1)
	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", b.ID).
		Updates(map[string]any{"vendor_id": otherVendor.ID, "split_group_id": a.SplitGroupID}).Error)
	ctx := context.Background()

	all, err := f.svc.ListSplitGroup(ctx, f.customerActor(), a.SplitGroupID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := f.svc.ListSplitGroup(ctx, f.vendorActor(), a.SplitGroupID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, a.ID, own[0].ID)

	_, err = f.svc.ListSplitGroup(ctx, f.customerActor(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
