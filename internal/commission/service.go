package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/fulfillment-engine/internal/ledger"
	"github.com/angelmondragon/fulfillment-engine/internal/notifications"
	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	dbpkg "github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const vendorPaymentLabel = "vendor payment"

// Service owns the vendor payable of each order.
type Service interface {
	CreateForOrder(ctx context.Context, orderID uuid.UUID) (*models.VendorPayment, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.VendorPayment, error)
	ApproveForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	MarkPaid(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.VendorPayment, error)
	MarkPaidBatch(ctx context.Context, actor auth.Principal, ids []uuid.UUID) ([]BatchResult, error)
	ListForVendor(ctx context.Context, actor auth.Principal, status enums.VendorPaymentStatus) ([]models.VendorPayment, error)
}

// BatchResult reports the outcome for one id of a batch payout.
type BatchResult struct {
	ID      uuid.UUID             `json:"id"`
	Payment *models.VendorPayment `json:"payment,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// ServiceParams groups dependencies for the commission service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Ledger   ledger.Service
	Rates    RateResolver
	Notifier notifications.Notifier
	Logger   *logger.Logger
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     Repository
	tx       txRunner
	ledger   ledger.Service
	rates    RateResolver
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	svc := &service{
		repo:     params.Repo,
		tx:       params.Tx,
		ledger:   params.Ledger,
		rates:    params.Rates,
		notifier: params.Notifier,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	return svc, nil
}

// CreateForOrder computes the payable once. A second call for the same order
// is AlreadyProcessed.
func (s *service) CreateForOrder(ctx context.Context, orderID uuid.UUID) (*models.VendorPayment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var payment *models.VendorPayment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.Order(ctx, orderID)
		if err != nil {
			return mapNotFound(err, "order not found", "load order")
		}
		payment, err = s.create(ctx, repo, order)
		return err
	})
	if err != nil {
		return nil, pkgerrors.TxFailure(err, "create vendor payment failed")
	}
	return payment, nil
}

func (s *service) create(ctx context.Context, repo Repository, order *models.Order) (*models.VendorPayment, error) {
	vendor, err := repo.Vendor(ctx, order.VendorID)
	if err != nil {
		return nil, mapNotFound(err, "vendor not found", "load vendor")
	}
	b := Calculate(Base(order), s.rates.Rate(vendor))
	payment := &models.VendorPayment{
		VendorID:         order.VendorID,
		OrderID:          order.ID,
		Amount:           b.Amount,
		CommissionRate:   b.Rate,
		CommissionAmount: b.Commission,
		NetAmount:        b.Net,
		PaymentStatus:    enums.VendorPaymentStatusPending,
	}
	if err := repo.Create(ctx, payment); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.AlreadyProcessed(vendorPaymentLabel)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert vendor payment")
	}
	return payment, nil
}

func (s *service) Approve(ctx context.Context, id uuid.UUID) (*models.VendorPayment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor payment id required")
	}
	var payment *models.VendorPayment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		payment, err = repo.Lock(ctx, id)
		if err != nil {
			return mapNotFound(err, "vendor payment not found", "load vendor payment")
		}
		if payment.PaymentStatus != enums.VendorPaymentStatusPending {
			return pkgerrors.AlreadyProcessed(vendorPaymentLabel)
		}
		return s.approve(ctx, repo, payment)
	})
	if err != nil {
		return nil, pkgerrors.TxFailure(err, "approve vendor payment failed")
	}
	return payment, nil
}

// ApproveForOrder runs inside the caller's transaction once the customer has
// paid. A payable missing from checkout is created here first; approved and
// paid rows are left alone.
func (s *service) ApproveForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	payment, err := repo.FindByOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		order, err := repo.Order(ctx, orderID)
		if err != nil {
			return mapNotFound(err, "order not found", "load order")
		}
		if payment, err = s.create(ctx, repo, order); err != nil {
			return err
		}
	} else if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor payment")
	}
	if payment.PaymentStatus != enums.VendorPaymentStatusPending {
		return nil
	}
	return s.approve(ctx, repo, payment)
}

func (s *service) approve(ctx context.Context, repo Repository, payment *models.VendorPayment) error {
	now := s.now()
	if err := repo.Update(ctx, payment.ID, map[string]any{
		"payment_status": enums.VendorPaymentStatusApproved,
		"approved_at":    now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve vendor payment")
	}
	payment.PaymentStatus = enums.VendorPaymentStatusApproved
	payment.ApprovedAt = &now
	return nil
}

// MarkPaid settles an approved payable and books the payout and the platform
// cut on the ledger.
func (s *service) MarkPaid(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.VendorPayment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor payment id required")
	}
	var payment *models.VendorPayment
	var vendor *models.Vendor
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		payment, err = repo.Lock(ctx, id)
		if err != nil {
			return mapNotFound(err, "vendor payment not found", "load vendor payment")
		}
		switch payment.PaymentStatus {
		case enums.VendorPaymentStatusPaid:
			return pkgerrors.AlreadyProcessed(vendorPaymentLabel)
		case enums.VendorPaymentStatusPending:
			return pkgerrors.NotApproved(vendorPaymentLabel)
		}

		now := s.now()
		if err := repo.Update(ctx, payment.ID, map[string]any{
			"payment_status": enums.VendorPaymentStatusPaid,
			"paid_at":        now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark vendor payment paid")
		}
		payment.PaymentStatus = enums.VendorPaymentStatusPaid
		payment.PaidAt = &now

		actorID := actor.UserID
		vendorID := payment.VendorID
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
			OrderID:       payment.OrderID,
			BeneficiaryID: &vendorID,
			ActorID:       &actorID,
			Type:          enums.LedgerEventTypeVendorPayout,
			Amount:        payment.NetAmount,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record vendor payout")
		}
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
			OrderID: payment.OrderID,
			ActorID: &actorID,
			Type:    enums.LedgerEventTypePlatformCommission,
			Amount:  payment.CommissionAmount,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record platform commission")
		}

		if v, err := repo.Vendor(ctx, payment.VendorID); err == nil {
			vendor = v
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.TxFailure(err, "vendor payout failed")
	}

	if vendor != nil && s.notifier != nil {
		s.notifier.Notify(ctx, notifications.Notice{
			UserID:  vendor.UserID,
			Kind:    enums.NotificationKindVendorPaymentPaid,
			Message: fmt.Sprintf("Payout of %s for order %s has been sent", payment.NetAmount.StringFixed(2), payment.OrderID),
			Payload: map[string]any{
				"vendor_payment_id": payment.ID.String(),
				"order_id":          payment.OrderID.String(),
				"net_amount":        payment.NetAmount.StringFixed(2),
			},
		})
	}
	return payment, nil
}

// MarkPaidBatch pays each id independently. The returned error merges every
// per-id failure; results carry the outcome of each id in input order.
func (s *service) MarkPaidBatch(ctx context.Context, actor auth.Principal, ids []uuid.UUID) ([]BatchResult, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one vendor payment id required")
	}
	results := make([]BatchResult, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	var errs error
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		payment, err := s.MarkPaid(ctx, actor, id)
		result := BatchResult{ID: id, Payment: payment}
		if err != nil {
			result.Error = err.Error()
			errs = multierr.Append(errs, fmt.Errorf("vendor payment %s: %w", id, err))
			s.logg.Warn(s.logg.WithField(ctx, "vendor_payment_id", id.String()), "batch payout item failed")
		}
		results = append(results, result)
	}
	return results, errs
}

func (s *service) ListForVendor(ctx context.Context, actor auth.Principal, status enums.VendorPaymentStatus) ([]models.VendorPayment, error) {
	if actor.Role != enums.RoleVendor || actor.VendorID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor account required")
	}
	if status != "" && !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment status %q", status)
	}
	payments, err := s.repo.ListByVendor(ctx, *actor.VendorID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor payments")
	}
	return payments, nil
}

func mapNotFound(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
