package orders

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-engine/api/controllers/views"
	"github.com/angelmondragon/fulfillment-engine/api/middleware"
	"github.com/angelmondragon/fulfillment-engine/api/responses"
	"github.com/angelmondragon/fulfillment-engine/api/validators"
	"github.com/angelmondragon/fulfillment-engine/internal/checkout"
	internalorders "github.com/angelmondragon/fulfillment-engine/internal/orders"
	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
)

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type statusRequest struct {
	Status enums.DeliveryStatus `json:"status" validate:"required"`
	Notes  string               `json:"notes" validate:"max=1000"`
}

// Place splits the caller's cart into one order per vendor.
func Place(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input checkout.SplitInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.CustomerID = caller.UserID
		input.CouponCode = validators.SanitizeString(input.CouponCode, 64)
		input.Notes = validators.SanitizeString(input.Notes, 1000)

		result, err := svc.Split(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, orderID, ok := callerAndOrder(w, r, svc, logg)
		if !ok {
			return
		}
		order, err := svc.GetOrder(r.Context(), caller, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromOrder(order))
	}
}

// Tracking returns the order's status history, oldest first.
func Tracking(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, orderID, ok := callerAndOrder(w, r, svc, logg)
		if !ok {
			return
		}
		entries, err := svc.ListTracking(r.Context(), caller, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromTracking(entries))
	}
}

// Group lists the sibling orders of one checkout visible to the caller.
func Group(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		groupID, err := validators.ParseUUIDParam(r, "groupID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListSplitGroup(r.Context(), caller, groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromOrders(list))
	}
}

func Confirm(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, orderID, ok := callerAndOrder(w, r, svc, logg)
		if !ok {
			return
		}
		order, err := svc.ConfirmOrder(r.Context(), caller, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromOrder(order))
	}
}

func Reject(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, orderID, ok := callerAndOrder(w, r, svc, logg)
		if !ok {
			return
		}
		reason, err := decodeReason(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.RejectOrder(r.Context(), caller, orderID, reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromOrder(order))
	}
}

// Cancel cancels the order and releases its stock once.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, orderID, ok := callerAndOrder(w, r, svc, logg)
		if !ok {
			return
		}
		reason, err := decodeReason(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CancelOrder(r.Context(), caller, orderID, reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromOrder(order))
	}
}

// UpdateStatus is the JSON variant of the delivery status update. It cannot
// carry a photo, so deliveries are reported through the multipart route.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, orderID, ok := callerAndOrder(w, r, svc, logg)
		if !ok {
			return
		}
		var body statusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateDeliveryStatus(r.Context(), caller, internalorders.DeliveryStatusInput{
			OrderID: orderID,
			Status:  body.Status,
			Notes:   validators.SanitizeString(body.Notes, 1000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromOrder(order))
	}
}

func callerAndOrder(w http.ResponseWriter, r *http.Request, svc internalorders.Service, logg *logger.Logger) (caller auth.Principal, orderID uuid.UUID, ok bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
		return caller, orderID, false
	}
	caller, err := middleware.CallerFromContext(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return caller, orderID, false
	}
	orderID, err = validators.ParseUUIDParam(r, "id")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return caller, orderID, false
	}
	return caller, orderID, true
}

// decodeReason accepts an empty body.
func decodeReason(r *http.Request) (string, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return "", nil
	}
	var body reasonRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return "", err
	}
	return validators.SanitizeString(body.Reason, 500), nil
}
