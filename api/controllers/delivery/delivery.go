package delivery

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-engine/api/controllers/views"
	"github.com/angelmondragon/fulfillment-engine/api/middleware"
	"github.com/angelmondragon/fulfillment-engine/api/responses"
	"github.com/angelmondragon/fulfillment-engine/api/validators"
	internaldelivery "github.com/angelmondragon/fulfillment-engine/internal/delivery"
	internalorders "github.com/angelmondragon/fulfillment-engine/internal/orders"
	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
)

// Ranker is the read side of the zone matcher.
type Ranker interface {
	CandidatesForOrder(ctx context.Context, orderID uuid.UUID) ([]internaldelivery.Candidate, error)
	BrowseZone(ctx context.Context, zoneID *uuid.UUID) ([]internaldelivery.Candidate, error)
}

type assignRequest struct {
	OrderID    uuid.UUID  `json:"order_id" validate:"required"`
	DeliveryID uuid.UUID  `json:"delivery_id" validate:"required"`
	Notes      string     `json:"notes" validate:"max=1000"`
	PickupTime *time.Time `json:"pickup_time,omitempty"`
}

type profileRequest struct {
	ZoneID *uuid.UUID `json:"zone_id,omitempty"`
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available" validate:"required"`
}

type earningsResponse struct {
	Total string `json:"total"`
}

// Candidates ranks agents for push assignment of an order the caller can see.
func Candidates(orders internalorders.Service, ranker Ranker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orders == nil || ranker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "matcher unavailable"))
			return
		}
		caller, ok := callerFrom(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := orders.GetOrder(r.Context(), caller, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := ranker.CandidatesForOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromCandidates(list))
	}
}

func ZonePersonnel(ranker Ranker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ranker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "matcher unavailable"))
			return
		}
		zoneID, err := validators.ParseUUIDParam(r, "zoneID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := ranker.BrowseZone(r.Context(), &zoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromCandidates(list))
	}
}

// Assign pushes an order to a chosen agent.
func Assign(svc internaldelivery.AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := serviceCaller(w, r, svc, logg)
		if !ok {
			return
		}
		var body assignRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Assign(r.Context(), caller, internaldelivery.AssignInput{
			OrderID:    body.OrderID,
			DeliveryID: body.DeliveryID,
			Notes:      validators.SanitizeString(body.Notes, 1000),
			PickupTime: body.PickupTime,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromOrder(order))
	}
}

// Claim files a pull request for an unassigned order. The response carries
// the order only when the claim was approved on the spot.
func Claim(svc internaldelivery.AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := serviceCaller(w, r, svc, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Claim(r.Context(), caller, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Order == nil {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, views.FromClaimResult(result))
	}
}

func CancelClaim(svc internaldelivery.AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := serviceCaller(w, r, svc, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CancelClaim(r.Context(), caller, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromOrder(order))
	}
}

func ApproveClaim(svc internaldelivery.AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := serviceCaller(w, r, svc, logg)
		if !ok {
			return
		}
		claimID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ApproveClaim(r.Context(), caller, claimID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromClaimResult(result))
	}
}

func RejectClaim(svc internaldelivery.AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := serviceCaller(w, r, svc, logg)
		if !ok {
			return
		}
		claimID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		claim, err := svc.RejectClaim(r.Context(), caller, claimID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromClaim(claim))
	}
}

// EnsureProfile creates the caller's delivery profile on first use.
func EnsureProfile(svc internaldelivery.AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := serviceCaller(w, r, svc, logg)
		if !ok {
			return
		}
		var body profileRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		profile, created, err := svc.EnsureProfile(r.Context(), caller, body.ZoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, views.FromPersonnel(profile))
	}
}

func SetAvailability(svc internaldelivery.AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := serviceCaller(w, r, svc, logg)
		if !ok {
			return
		}
		var body availabilityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.SetAvailability(r.Context(), caller, *body.IsAvailable)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromPersonnel(profile))
	}
}

// Verify marks an agent as verified, optionally moving it to a zone.
func Verify(svc internaldelivery.AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := serviceCaller(w, r, svc, logg)
		if !ok {
			return
		}
		deliveryID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body profileRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		profile, err := svc.VerifyAgent(r.Context(), caller, deliveryID, body.ZoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromPersonnel(profile))
	}
}

func AssignedOrders(svc internaldelivery.AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := serviceCaller(w, r, svc, logg)
		if !ok {
			return
		}
		list, err := svc.AssignedOrders(r.Context(), caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromOrders(list))
	}
}

func Earnings(svc internaldelivery.AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := serviceCaller(w, r, svc, logg)
		if !ok {
			return
		}
		total, err := svc.Earnings(r.Context(), caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, earningsResponse{Total: total.StringFixed(2)})
	}
}

func serviceCaller(w http.ResponseWriter, r *http.Request, svc internaldelivery.AssignmentService, logg *logger.Logger) (auth.Principal, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
		return auth.Principal{}, false
	}
	return callerFrom(w, r, logg)
}

func callerFrom(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (auth.Principal, bool) {
	caller, err := middleware.CallerFromContext(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return auth.Principal{}, false
	}
	return caller, true
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_received").WithDetails(map[string]any{"field": "payment_received"})
	}
	return amount, nil
}
