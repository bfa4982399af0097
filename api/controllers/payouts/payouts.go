package payouts

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-engine/api/controllers/views"
	"github.com/angelmondragon/fulfillment-engine/api/middleware"
	"github.com/angelmondragon/fulfillment-engine/api/responses"
	"github.com/angelmondragon/fulfillment-engine/api/validators"
	"github.com/angelmondragon/fulfillment-engine/internal/commission"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
)

const maxBatchSize = 100

type batchRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=100"`
}

type batchResponse struct {
	Results   []views.BatchResult `json:"results"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// Approve moves a pending vendor payable to approved.
func Approve(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := svc.Approve(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromVendorPayment(payment))
	}
}

func Pay(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := svc.MarkPaid(r.Context(), caller, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromVendorPayment(payment))
	}
}

// PayBatch settles several payables. Each id succeeds or fails on its own;
// the response is 200 even when some fail.
func PayBatch(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body batchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(body.IDs) > maxBatchSize {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d ids per batch", maxBatchSize))
			return
		}

		results, err := svc.MarkPaidBatch(r.Context(), caller, body.IDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := batchResponse{Results: views.FromBatch(results)}
		for _, res := range results {
			if res.Error != "" {
				out.Failed++
				continue
			}
			out.Succeeded++
		}
		responses.WriteSuccess(w, out)
	}
}

// ListMine returns the calling vendor's payables, optionally by status.
func ListMine(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := enums.VendorPaymentStatus(strings.TrimSpace(r.URL.Query().Get("status")))
		list, err := svc.ListForVendor(r.Context(), caller, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.FromVendorPayments(list))
	}
}
