package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/fulfillment-engine/internal/catalog"
	"github.com/angelmondragon/fulfillment-engine/internal/notifications"
	"github.com/angelmondragon/fulfillment-engine/internal/orders"
	pkgcheckout "github.com/angelmondragon/fulfillment-engine/pkg/checkout"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PayableCreator computes the vendor payable for a freshly placed order.
type PayableCreator interface {
	CreateForOrder(ctx context.Context, orderID uuid.UUID) (*models.VendorPayment, error)
}

type stockRecorder interface {
	IncStockShortfall()
}

// Service executes checkout orchestration.
type Service interface {
	Split(ctx context.Context, input SplitInput) (*SplitResult, error)
}

// ServiceParams groups the collaborators of the checkout service.
type ServiceParams struct {
	Tx         txRunner
	Repo       Repository
	Orders     orders.Repository
	Catalog    catalog.Gateway
	Payables   PayableCreator
	Notifier   notifications.Notifier
	Metrics    stockRecorder
	Logger     *logger.Logger
	DefaultFee decimal.Decimal
}

type service struct {
	tx         txRunner
	repo       Repository
	orders     orders.Repository
	catalog    catalog.Gateway
	payables   PayableCreator
	notifier   notifications.Notifier
	metrics    stockRecorder
	logg       *logger.Logger
	defaultFee decimal.Decimal
	now        func() time.Time
}

type noopRecorder struct{}

func (noopRecorder) IncStockShortfall() {}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("checkout repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog gateway required")
	}
	svc := &service{
		tx:         params.Tx,
		repo:       params.Repo,
		orders:     params.Orders,
		catalog:    params.Catalog,
		payables:   params.Payables,
		notifier:   params.Notifier,
		metrics:    params.Metrics,
		logg:       params.Logger,
		defaultFee: params.DefaultFee,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if svc.metrics == nil {
		svc.metrics = noopRecorder{}
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	return svc, nil
}

// Split turns one cart into one pending order per vendor. Orders, items,
// payment rows, coupon usage and stock decrements commit together; a stock
// shortfall in any group rolls back every group.
func (s *service) Split(ctx context.Context, input SplitInput) (*SplitResult, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.InvalidPaymentMethod(input.PaymentMethod.String())
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.EmptyCart()
	}
	lines := make([]pkgcheckout.LineInput, len(input.Lines))
	for i, line := range input.Lines {
		lines[i] = lineInput(line)
	}
	if err := pkgcheckout.ValidateLines(lines); err != nil {
		return nil, err
	}
	if !pkgcheckout.Subtotal(lines).IsPositive() {
		return nil, pkgerrors.InvalidCartTotal()
	}

	resolved, err := s.resolveVendors(ctx, input.Lines)
	if err != nil {
		return nil, err
	}
	groups := groupByVendor(resolved)
	cartSubtotal := decimal.Zero
	for _, g := range groups {
		cartSubtotal = cartSubtotal.Add(g.Subtotal)
	}
	if !cartSubtotal.IsPositive() {
		return nil, pkgerrors.InvalidCartTotal()
	}

	fee, err := s.deliveryFee(ctx, input)
	if err != nil {
		return nil, err
	}

	result := &SplitResult{SplitGroupID: uuid.New(), Discount: decimal.Zero}
	var created []*models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		var couponID *uuid.UUID
		discount := decimal.Zero
		if code := strings.TrimSpace(input.CouponCode); code != "" {
			coupon, err := repo.LockCouponByCode(ctx, code)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return couponRejected(code, "unknown code")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
			}
			discount, err = couponDiscount(coupon, cartSubtotal, s.now())
			if err != nil {
				return err
			}
			if err := repo.IncrementCouponUsage(ctx, coupon.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon usage")
			}
			id := coupon.ID
			couponID = &id
		}
		allocateDiscount(groups, cartSubtotal, discount)
		result.Discount = discount

		placedAt := s.now()
		for _, g := range groups {
			order := s.buildOrder(input, g, fee, couponID, result.SplitGroupID, placedAt)
			if err := ordersRepo.CreateOrder(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
			}
			if err := ordersRepo.CreatePayment(ctx, &models.Payment{
				OrderID: order.ID,
				Method:  input.PaymentMethod,
				Status:  enums.PaymentStatusPending,
				Amount:  order.Total,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment")
			}
			for _, item := range order.Items {
				if err := s.catalog.DecrementStock(ctx, tx, item.ProductID, item.Qty); err != nil {
					if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
						s.metrics.IncStockShortfall()
					}
					return err
				}
			}
			created = append(created, order)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.TxFailure(err, "checkout failed")
	}

	for _, order := range created {
		result.Orders = append(result.Orders, SplitOrder{
			OrderID:  order.ID,
			VendorID: order.VendorID,
			Subtotal: order.Subtotal,
			Discount: order.Discount,
			Fee:      order.DeliveryFee,
			Total:    order.Total,
		})
	}
	s.afterCommit(ctx, input.CustomerID, result.SplitGroupID, created)
	return result, nil
}

// resolveVendors fills in missing vendor ids from the catalog and drops
// lines whose product has no owner.
func (s *service) resolveVendors(ctx context.Context, lines []CartLine) ([]CartLine, error) {
	var lookup []uuid.UUID
	for _, line := range lines {
		if line.VendorID == nil || *line.VendorID == uuid.Nil {
			lookup = append(lookup, line.ProductID)
		}
	}
	owners := map[uuid.UUID]uuid.UUID{}
	if len(lookup) > 0 {
		var err error
		owners, err = s.catalog.VendorOf(ctx, lookup)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve vendors")
		}
	}

	resolved := make([]CartLine, 0, len(lines))
	for _, line := range lines {
		if line.VendorID != nil && *line.VendorID != uuid.Nil {
			resolved = append(resolved, line)
			continue
		}
		vendorID, ok := owners[line.ProductID]
		if !ok {
			s.logg.Warn(s.logg.WithField(ctx, "product_id", line.ProductID.String()), "dropping cart line without vendor")
			continue
		}
		line.VendorID = &vendorID
		resolved = append(resolved, line)
	}
	if len(resolved) == 0 {
		return nil, pkgerrors.NoResolvableVendorItems()
	}
	return resolved, nil
}

func (s *service) deliveryFee(ctx context.Context, input SplitInput) (decimal.Decimal, error) {
	if input.DeliveryFee != nil {
		if input.DeliveryFee.IsNegative() {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "delivery_fee must not be negative")
		}
		return input.DeliveryFee.Round(2), nil
	}
	if input.DeliveryZoneID != nil {
		return s.catalog.ZoneFee(ctx, *input.DeliveryZoneID)
	}
	return s.defaultFee.Round(2), nil
}

func (s *service) buildOrder(input SplitInput, g *vendorGroup, fee decimal.Decimal, couponID *uuid.UUID, splitGroupID uuid.UUID, placedAt time.Time) *models.Order {
	order := &models.Order{
		CustomerID:         input.CustomerID,
		VendorID:           g.VendorID,
		SplitGroupID:       splitGroupID,
		AddressID:          input.AddressID,
		DeliveryZoneID:     input.DeliveryZoneID,
		CouponID:           couponID,
		Status:             enums.OrderStatusPending,
		ConfirmationStatus: enums.ConfirmationStatusPending,
		PaymentMethod:      input.PaymentMethod,
		Subtotal:           g.Subtotal.Round(2),
		Discount:           g.Discount,
		DeliveryFee:        fee,
		Total:              g.Subtotal.Sub(g.Discount).Add(fee).Round(2),
		PlacedAt:           placedAt,
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		order.Notes = &notes
	}
	for _, line := range g.Lines {
		li := lineInput(line)
		order.Items = append(order.Items, models.OrderItem{
			ProductID:  line.ProductID,
			Qty:        line.Quantity,
			UnitPrice:  line.UnitPrice,
			FinalPrice: li.Price(),
			TotalPrice: li.Total().Round(2),
		})
	}
	return order
}

// afterCommit computes payables and fans out notifications. Failures here
// never undo the checkout.
func (s *service) afterCommit(ctx context.Context, customerID, splitGroupID uuid.UUID, created []*models.Order) {
	for _, order := range created {
		orderCtx := s.logg.WithOrderID(ctx, order.ID.String())
		if s.payables != nil {
			if _, err := s.payables.CreateForOrder(ctx, order.ID); err != nil {
				s.logg.Error(orderCtx, "vendor payable not created", err)
			}
		}
	}
	if s.notifier == nil {
		return
	}

	payload := map[string]any{"split_group_id": splitGroupID.String(), "order_count": len(created)}
	notices := []notifications.Notice{{
		UserID:  customerID,
		Kind:    enums.NotificationKindOrderPlaced,
		Message: fmt.Sprintf("Your checkout was split into %d order(s)", len(created)),
		Payload: payload,
	}}
	for _, order := range created {
		vendor, err := s.catalog.Vendor(ctx, order.VendorID)
		if err != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "vendor lookup for notification failed")
			continue
		}
		notices = append(notices, notifications.Notice{
			UserID:  vendor.UserID,
			Kind:    enums.NotificationKindOrderPlaced,
			Message: fmt.Sprintf("New order %s awaits confirmation", order.ID),
			Payload: map[string]any{"order_id": order.ID.String(), "total": order.Total.StringFixed(2)},
		})
	}
	s.notifier.Notify(ctx, notices...)
}
