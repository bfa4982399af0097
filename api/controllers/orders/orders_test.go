package orders

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-engine/api/middleware"
	"github.com/angelmondragon/fulfillment-engine/internal/checkout"
	internalorders "github.com/angelmondragon/fulfillment-engine/internal/orders"
	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
)

type stubSplitter struct {
	split func(ctx context.Context, input checkout.SplitInput) (*checkout.SplitResult, error)
}

func (s stubSplitter) Split(ctx context.Context, input checkout.SplitInput) (*checkout.SplitResult, error) {
	return s.split(ctx, input)
}

type stubOrdersService struct {
	confirm  func(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error)
	cancel   func(ctx context.Context, actor auth.Principal, orderID uuid.UUID, reason string) (*models.Order, error)
	status   func(ctx context.Context, actor auth.Principal, input internalorders.DeliveryStatusInput) (*models.Order, error)
	get      func(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error)
	tracking func(ctx context.Context, actor auth.Principal, orderID uuid.UUID) ([]models.DeliveryTracking, error)
}

func (s *stubOrdersService) ConfirmOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
	return s.confirm(ctx, actor, orderID)
}

func (s *stubOrdersService) RejectOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID, reason string) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersService) CancelOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID, reason string) (*models.Order, error) {
	return s.cancel(ctx, actor, orderID, reason)
}

func (s *stubOrdersService) UpdateDeliveryStatus(ctx context.Context, actor auth.Principal, input internalorders.DeliveryStatusInput) (*models.Order, error) {
	return s.status(ctx, actor, input)
}

func (s *stubOrdersService) GetOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
	return s.get(ctx, actor, orderID)
}

func (s *stubOrdersService) ListSplitGroup(ctx context.Context, actor auth.Principal, splitGroupID uuid.UUID) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersService) ListTracking(ctx context.Context, actor auth.Principal, orderID uuid.UUID) ([]models.DeliveryTracking, error) {
	return s.tracking(ctx, actor, orderID)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func request(method, target, body string, caller *auth.Principal, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if caller != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), *caller))
	}
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestPlaceUsesCallerAsCustomer(t *testing.T) {
	customer := auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}
	productID := uuid.New()
	var got checkout.SplitInput
	svc := stubSplitter{split: func(ctx context.Context, input checkout.SplitInput) (*checkout.SplitResult, error) {
		got = input
		return &checkout.SplitResult{SplitGroupID: uuid.New(), Discount: decimal.Zero}, nil
	}}

	body := `{"payment_method":"cash","coupon_code":" save10 ","lines":[{"product_id":"` + productID.String() + `","quantity":2,"unit_price":"10.00"}]}`
	resp := httptest.NewRecorder()
	Place(svc, testLogger())(resp, request(http.MethodPost, "/api/v1/orders", body, &customer, nil))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Equal(t, customer.UserID, got.CustomerID)
	require.Equal(t, enums.PaymentMethodCash, got.PaymentMethod)
	require.Equal(t, "save10", got.CouponCode)
	require.Len(t, got.Lines, 1)
	require.Equal(t, productID, got.Lines[0].ProductID)
	require.True(t, got.Lines[0].UnitPrice.Equal(decimal.NewFromInt(10)))
}

func TestPlaceRejectsCustomerOverride(t *testing.T) {
	customer := auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}
	svc := stubSplitter{split: func(ctx context.Context, input checkout.SplitInput) (*checkout.SplitResult, error) {
		t.Fatal("split should not run")
		return nil, nil
	}}
	body := `{"customer_id":"` + uuid.NewString() + `","payment_method":"cash","lines":[]}`
	resp := httptest.NewRecorder()
	Place(svc, testLogger())(resp, request(http.MethodPost, "/api/v1/orders", body, &customer, nil))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPlaceRequiresCaller(t *testing.T) {
	resp := httptest.NewRecorder()
	Place(stubSplitter{}, testLogger())(resp, request(http.MethodPost, "/api/v1/orders", `{}`, nil, nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestConfirmMapsInvalidTransition(t *testing.T) {
	vendorID := uuid.New()
	vendor := auth.Principal{UserID: uuid.New(), Role: enums.RoleVendor, VendorID: &vendorID}
	orderID := uuid.New()
	svc := &stubOrdersService{confirm: func(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Order, error) {
		require.Equal(t, orderID, id)
		return nil, pkgerrors.InvalidTransition("rejected", "confirmed")
	}}

	resp := httptest.NewRecorder()
	Confirm(svc, testLogger())(resp, request(http.MethodPut, "/", "", &vendor, map[string]string{"id": orderID.String()}))
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Equal(t, string(pkgerrors.CodeStateConflict), errorCode(t, resp))
}

func TestCancelAcceptsOptionalReason(t *testing.T) {
	customer := auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}
	orderID := uuid.New()
	var reasons []string
	svc := &stubOrdersService{cancel: func(ctx context.Context, actor auth.Principal, id uuid.UUID, reason string) (*models.Order, error) {
		reasons = append(reasons, reason)
		return &models.Order{ID: id, Status: enums.OrderStatusCancelled, Total: decimal.RequireFromString("12.5")}, nil
	}}

	params := map[string]string{"id": orderID.String()}
	resp := httptest.NewRecorder()
	Cancel(svc, testLogger())(resp, request(http.MethodPatch, "/", "", &customer, params))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	Cancel(svc, testLogger())(resp, request(http.MethodPatch, "/", `{"reason":"changed my mind"}`, &customer, params))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, []string{"", "changed my mind"}, reasons)

	var envelope struct {
		Data struct {
			Status string `json:"status"`
			Total  string `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Equal(t, "cancelled", envelope.Data.Status)
	require.Equal(t, "12.50", envelope.Data.Total)
}

func TestGetRejectsMalformedID(t *testing.T) {
	customer := auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}
	svc := &stubOrdersService{}
	resp := httptest.NewRecorder()
	Get(svc, testLogger())(resp, request(http.MethodGet, "/", "", &customer, map[string]string{"id": "nope"}))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUpdateStatusForwardsBody(t *testing.T) {
	agent := auth.Principal{UserID: uuid.New(), Role: enums.RoleDelivery}
	orderID := uuid.New()
	var got internalorders.DeliveryStatusInput
	svc := &stubOrdersService{status: func(ctx context.Context, actor auth.Principal, input internalorders.DeliveryStatusInput) (*models.Order, error) {
		got = input
		return &models.Order{ID: input.OrderID, Status: enums.OrderStatusPickedUp}, nil
	}}

	resp := httptest.NewRecorder()
	UpdateStatus(svc, testLogger())(resp, request(http.MethodPut, "/", `{"status":"picked_up","notes":"at the door"}`, &agent, map[string]string{"id": orderID.String()}))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, orderID, got.OrderID)
	require.Equal(t, enums.DeliveryStatus("picked_up"), got.Status)
	require.Equal(t, "at the door", got.Notes)
	require.Nil(t, got.Photo)
}

func TestTrackingReturnsEntries(t *testing.T) {
	customer := auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}
	orderID := uuid.New()
	svc := &stubOrdersService{tracking: func(ctx context.Context, actor auth.Principal, id uuid.UUID) ([]models.DeliveryTracking, error) {
		return []models.DeliveryTracking{{OrderID: id, Status: enums.TrackingStatus("pending")}, {OrderID: id, Status: enums.TrackingStatus("confirmed")}}, nil
	}}

	resp := httptest.NewRecorder()
	Tracking(svc, testLogger())(resp, request(http.MethodGet, "/", "", &customer, map[string]string{"id": orderID.String()}))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data []struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	require.Equal(t, "confirmed", envelope.Data[1].Status)
}
