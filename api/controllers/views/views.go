// Package views maps persistence models onto the JSON shapes the API returns.
package views

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-engine/internal/commission"
	"github.com/angelmondragon/fulfillment-engine/internal/delivery"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type OrderItem struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	Qty        int       `json:"qty"`
	UnitPrice  string    `json:"unit_price"`
	FinalPrice string    `json:"final_price"`
	TotalPrice string    `json:"total_price"`
}

type Order struct {
	ID                    uuid.UUID                `json:"id"`
	CustomerID            uuid.UUID                `json:"customer_id"`
	VendorID              uuid.UUID                `json:"vendor_id"`
	SplitGroupID          uuid.UUID                `json:"split_group_id"`
	AddressID             *uuid.UUID               `json:"address_id,omitempty"`
	DeliveryZoneID        *uuid.UUID               `json:"delivery_zone_id,omitempty"`
	DeliveryID            *uuid.UUID               `json:"delivery_id,omitempty"`
	CouponID              *uuid.UUID               `json:"coupon_id,omitempty"`
	Status                enums.OrderStatus        `json:"status"`
	ConfirmationStatus    enums.ConfirmationStatus `json:"confirmation_status"`
	PaymentMethod         enums.PaymentMethod      `json:"payment_method"`
	Subtotal              string                   `json:"subtotal"`
	Discount              string                   `json:"discount"`
	DeliveryFee           string                   `json:"delivery_fee"`
	Total                 string                   `json:"total"`
	Notes                 *string                  `json:"notes,omitempty"`
	PlacedAt              time.Time                `json:"placed_at"`
	EstimatedDeliveryTime *time.Time               `json:"estimated_delivery_time,omitempty"`
	ActualDeliveryTime    *time.Time               `json:"actual_delivery_time,omitempty"`
	CancelledAt           *time.Time               `json:"cancelled_at,omitempty"`
	Items                 []OrderItem              `json:"items,omitempty"`
	UpdatedAt             time.Time                `json:"updated_at"`
}

func FromOrder(o *models.Order) *Order {
	if o == nil {
		return nil
	}
	out := &Order{
		ID:                    o.ID,
		CustomerID:            o.CustomerID,
		VendorID:              o.VendorID,
		SplitGroupID:          o.SplitGroupID,
		AddressID:             o.AddressID,
		DeliveryZoneID:        o.DeliveryZoneID,
		DeliveryID:            o.DeliveryID,
		CouponID:              o.CouponID,
		Status:                o.Status,
		ConfirmationStatus:    o.ConfirmationStatus,
		PaymentMethod:         o.PaymentMethod,
		Subtotal:              money(o.Subtotal),
		Discount:              money(o.Discount),
		DeliveryFee:           money(o.DeliveryFee),
		Total:                 money(o.Total),
		Notes:                 o.Notes,
		PlacedAt:              o.PlacedAt,
		EstimatedDeliveryTime: o.EstimatedDeliveryTime,
		ActualDeliveryTime:    o.ActualDeliveryTime,
		CancelledAt:           o.CancelledAt,
		UpdatedAt:             o.UpdatedAt,
	}
	for _, item := range o.Items {
		out.Items = append(out.Items, OrderItem{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			UnitPrice:  money(item.UnitPrice),
			FinalPrice: money(item.FinalPrice),
			TotalPrice: money(item.TotalPrice),
		})
	}
	return out
}

func FromOrders(list []models.Order) []Order {
	out := make([]Order, 0, len(list))
	for i := range list {
		out = append(out, *FromOrder(&list[i]))
	}
	return out
}

type Tracking struct {
	ID        uuid.UUID            `json:"id"`
	Status    enums.TrackingStatus `json:"status"`
	Notes     *string              `json:"notes,omitempty"`
	ActorID   *uuid.UUID           `json:"actor_id,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

func FromTracking(list []models.DeliveryTracking) []Tracking {
	out := make([]Tracking, 0, len(list))
	for _, entry := range list {
		out = append(out, Tracking{
			ID:        entry.ID,
			Status:    entry.Status,
			Notes:     entry.Notes,
			ActorID:   entry.ActorID,
			CreatedAt: entry.CreatedAt,
		})
	}
	return out
}

type Personnel struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	ZoneID          *uuid.UUID `json:"zone_id,omitempty"`
	IsAvailable     bool       `json:"is_available"`
	IsVerified      bool       `json:"is_verified"`
	Rating          float64    `json:"rating"`
	TotalDeliveries int        `json:"total_deliveries"`
}

func FromPersonnel(p *models.DeliveryPersonnel) *Personnel {
	if p == nil {
		return nil
	}
	return &Personnel{
		ID:              p.ID,
		UserID:          p.UserID,
		ZoneID:          p.ZoneID,
		IsAvailable:     p.IsAvailable,
		IsVerified:      p.IsVerified,
		Rating:          p.Rating,
		TotalDeliveries: p.TotalDeliveries,
	}
}

type Candidate struct {
	Personnel
	ActiveAssignments int64 `json:"active_assignments"`
}

func FromCandidates(list []delivery.Candidate) []Candidate {
	out := make([]Candidate, 0, len(list))
	for i := range list {
		out = append(out, Candidate{
			Personnel:         *FromPersonnel(&list[i].DeliveryPersonnel),
			ActiveAssignments: list[i].ActiveAssignments,
		})
	}
	return out
}

type Claim struct {
	ID          uuid.UUID         `json:"id"`
	OrderID     uuid.UUID         `json:"order_id"`
	DeliveryID  uuid.UUID         `json:"delivery_id"`
	ClaimStatus enums.ClaimStatus `json:"claim_status"`
	ClaimedAt   time.Time         `json:"claimed_at"`
	ApprovedAt  *time.Time        `json:"approved_at,omitempty"`
	DecidedBy   *uuid.UUID        `json:"decided_by,omitempty"`
}

func FromClaim(c *models.DeliveryClaimRequest) *Claim {
	if c == nil {
		return nil
	}
	return &Claim{
		ID:          c.ID,
		OrderID:     c.OrderID,
		DeliveryID:  c.DeliveryID,
		ClaimStatus: c.ClaimStatus,
		ClaimedAt:   c.ClaimedAt,
		ApprovedAt:  c.ApprovedAt,
		DecidedBy:   c.DecidedBy,
	}
}

// ClaimResult carries the order only once the claim was approved.
type ClaimResult struct {
	Claim *Claim `json:"claim"`
	Order *Order `json:"order,omitempty"`
}

func FromClaimResult(r *delivery.ClaimResult) ClaimResult {
	if r == nil {
		return ClaimResult{}
	}
	return ClaimResult{Claim: FromClaim(r.Claim), Order: FromOrder(r.Order)}
}

type VendorPayment struct {
	ID               uuid.UUID                 `json:"id"`
	VendorID         uuid.UUID                 `json:"vendor_id"`
	OrderID          uuid.UUID                 `json:"order_id"`
	Amount           string                    `json:"amount"`
	CommissionRate   string                    `json:"commission_rate"`
	CommissionAmount string                    `json:"commission_amount"`
	NetAmount        string                    `json:"net_amount"`
	PaymentStatus    enums.VendorPaymentStatus `json:"payment_status"`
	ApprovedAt       *time.Time                `json:"approved_at,omitempty"`
	PaidAt           *time.Time                `json:"paid_at,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
}

func FromVendorPayment(v *models.VendorPayment) *VendorPayment {
	if v == nil {
		return nil
	}
	return &VendorPayment{
		ID:               v.ID,
		VendorID:         v.VendorID,
		OrderID:          v.OrderID,
		Amount:           money(v.Amount),
		CommissionRate:   money(v.CommissionRate),
		CommissionAmount: money(v.CommissionAmount),
		NetAmount:        money(v.NetAmount),
		PaymentStatus:    v.PaymentStatus,
		ApprovedAt:       v.ApprovedAt,
		PaidAt:           v.PaidAt,
		CreatedAt:        v.CreatedAt,
	}
}

func FromVendorPayments(list []models.VendorPayment) []VendorPayment {
	out := make([]VendorPayment, 0, len(list))
	for i := range list {
		out = append(out, *FromVendorPayment(&list[i]))
	}
	return out
}

type BatchResult struct {
	ID      uuid.UUID      `json:"id"`
	Payment *VendorPayment `json:"payment,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func FromBatch(results []commission.BatchResult) []BatchResult {
	out := make([]BatchResult, 0, len(results))
	for _, res := range results {
		out = append(out, BatchResult{ID: res.ID, Payment: FromVendorPayment(res.Payment), Error: res.Error})
	}
	return out
}

type Confirmation struct {
	ID              uuid.UUID `json:"id"`
	OrderID         uuid.UUID `json:"order_id"`
	DeliveryID      uuid.UUID `json:"delivery_id"`
	PaymentReceived string    `json:"payment_received"`
	PhotoKey        *string   `json:"photo_key,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
}

func FromConfirmation(c *models.PaymentConfirmation) *Confirmation {
	if c == nil {
		return nil
	}
	return &Confirmation{
		ID:              c.ID,
		OrderID:         c.OrderID,
		DeliveryID:      c.DeliveryID,
		PaymentReceived: money(c.PaymentReceived),
		PhotoKey:        c.PhotoKey,
		Notes:           c.Notes,
		ConfirmedAt:     c.ConfirmedAt,
	}
}

type Notification struct {
	ID        uuid.UUID              `json:"id"`
	Kind      enums.NotificationKind `json:"kind"`
	Message   string                 `json:"message"`
	Payload   map[string]any         `json:"payload,omitempty"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func FromNotifications(list []models.Notification) []Notification {
	out := make([]Notification, 0, len(list))
	for _, n := range list {
		out = append(out, Notification{
			ID:        n.ID,
			Kind:      n.Kind,
			Message:   n.Message,
			Payload:   n.Payload,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
