package delivery

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-engine/api/controllers/views"
	"github.com/angelmondragon/fulfillment-engine/api/responses"
	"github.com/angelmondragon/fulfillment-engine/api/validators"
	internalorders "github.com/angelmondragon/fulfillment-engine/internal/orders"
	"github.com/angelmondragon/fulfillment-engine/internal/payments"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
)

const photoField = "photo"

type confirmPaymentRequest struct {
	PaymentReceived decimal.Decimal `json:"payment_received"`
	Notes           string          `json:"notes" validate:"max=1000"`
}

type confirmPaymentResponse struct {
	Confirmation *views.Confirmation `json:"confirmation"`
	Order        *views.Order        `json:"order"`
}

// UpdateStatus takes a multipart form with order_id, status, notes and an
// optional photo. The service requires the photo for deliveries.
func UpdateStatus(svc internalorders.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		caller, ok := callerFrom(w, r, logg)
		if !ok {
			return
		}
		if !validators.IsMultipart(r) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "multipart/form-data body required"))
			return
		}
		form, err := validators.ParsePhotoForm(w, r, photoField, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer form.Close()

		orderID, err := validators.ParseOptionalUUID(form.Value("order_id"), "order_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if orderID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required"))
			return
		}
		status, err := enums.ParseDeliveryStatus(form.Value("status"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.UpdateDeliveryStatus(r.Context(), caller, internalorders.DeliveryStatusInput{
			OrderID: *orderID,
			Status:  status,
			Notes:   validators.SanitizeString(form.Value("notes"), 1000),
			Photo:   form.Photo,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromOrder(order))
	}
}

// ConfirmPayment records cash collected at the door. It accepts JSON or a
// multipart form with an optional photo of the receipt.
func ConfirmPayment(svc payments.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
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

		input := payments.ConfirmCashInput{OrderID: orderID}
		if validators.IsMultipart(r) {
			form, err := validators.ParsePhotoForm(w, r, photoField, maxBytes)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			defer form.Close()
			amount, err := parseAmount(form.Value("payment_received"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.PaymentReceived = amount
			input.Notes = validators.SanitizeString(form.Value("notes"), 1000)
			input.Photo = form.Photo
		} else {
			var body confirmPaymentRequest
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.PaymentReceived = body.PaymentReceived
			input.Notes = validators.SanitizeString(body.Notes, 1000)
		}

		result, err := svc.ConfirmCash(r.Context(), caller, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmPaymentResponse{
			Confirmation: views.FromConfirmation(result.Confirmation),
			Order:        views.FromOrder(result.Order),
		})
	}
}
