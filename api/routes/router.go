package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/fulfillment-engine/api/controllers"
	deliverycontrollers "github.com/angelmondragon/fulfillment-engine/api/controllers/delivery"
	ordercontrollers "github.com/angelmondragon/fulfillment-engine/api/controllers/orders"
	payoutcontrollers "github.com/angelmondragon/fulfillment-engine/api/controllers/payouts"
	"github.com/angelmondragon/fulfillment-engine/api/middleware"
	"github.com/angelmondragon/fulfillment-engine/internal/authz"
	"github.com/angelmondragon/fulfillment-engine/internal/checkout"
	"github.com/angelmondragon/fulfillment-engine/internal/commission"
	"github.com/angelmondragon/fulfillment-engine/internal/delivery"
	"github.com/angelmondragon/fulfillment-engine/internal/notifications"
	"github.com/angelmondragon/fulfillment-engine/internal/orders"
	"github.com/angelmondragon/fulfillment-engine/internal/payments"
	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/angelmondragon/fulfillment-engine/pkg/redis"
)

// Dependencies is everything the HTTP surface needs. Optional collaborators
// (Idempotency, RateLimiter, Metrics, MetricsHandler) may be left nil.
type Dependencies struct {
	Config         *config.Config
	Logger         *logger.Logger
	Pingers        map[string]controllers.Pinger
	Authz          middleware.CapabilityChecker
	Idempotency    redis.IdempotencyStore
	RateLimiter    middleware.RateLimiter
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler

	Checkout      checkout.Service
	Orders        orders.Service
	Assignments   delivery.AssignmentService
	Matcher       deliverycontrollers.Ranker
	Payments      payments.Service
	Commission    commission.Service
	Notifications notifications.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	maxUpload := int64(cfg.App.MaxUploadMB) << 20

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Pingers, logg))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	can := func(capability authz.Capability) func(http.Handler) http.Handler {
		return middleware.RequireCapability(deps.Authz, capability, logg)
	}
	// Route-level so the full chi pattern is known when the rule table is consulted.
	idem := middleware.Idempotency(deps.Idempotency, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.With(idem).Post("/{id}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(can(authz.CapOrderPlace), idem).Post("/", ordercontrollers.Place(deps.Checkout, logg))
			r.With(can(authz.CapOrderRead)).Get("/groups/{groupID}", ordercontrollers.Group(deps.Orders, logg))
			r.With(can(authz.CapOrderRead)).Get("/{id}", ordercontrollers.Get(deps.Orders, logg))
			r.With(can(authz.CapOrderRead)).Get("/{id}/tracking", ordercontrollers.Tracking(deps.Orders, logg))
			r.With(can(authz.CapDeliveryStatus)).Put("/{id}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
			r.With(can(authz.CapOrderDecide)).Put("/{id}/confirm", ordercontrollers.Confirm(deps.Orders, logg))
			r.With(can(authz.CapOrderDecide)).Put("/{id}/reject", ordercontrollers.Reject(deps.Orders, logg))
			r.With(can(authz.CapOrderCancel)).Patch("/{id}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
		})

		r.Route("/delivery", func(r chi.Router) {
			claimLimit := middleware.ClaimRateLimit(deps.RateLimiter, cfg.RateLimit, logg)

			r.With(can(authz.CapDeliveryAssign)).Get("/orders/{id}/candidates", deliverycontrollers.Candidates(deps.Orders, deps.Matcher, logg))
			r.With(can(authz.CapDeliveryBrowse)).Get("/zones/{zoneID}/personnel", deliverycontrollers.ZonePersonnel(deps.Matcher, logg))
			r.With(can(authz.CapDeliveryAssign), idem).Post("/orders/assign", deliverycontrollers.Assign(deps.Assignments, logg))
			r.With(can(authz.CapDeliveryClaim), claimLimit, idem).Post("/orders/{id}/claim", deliverycontrollers.Claim(deps.Assignments, logg))
			r.With(can(authz.CapDeliveryClaim), claimLimit).Post("/orders/{id}/cancel-claim", deliverycontrollers.CancelClaim(deps.Assignments, logg))
			r.With(can(authz.CapClaimDecide)).Post("/claims/{id}/approve", deliverycontrollers.ApproveClaim(deps.Assignments, logg))
			r.With(can(authz.CapClaimDecide)).Post("/claims/{id}/reject", deliverycontrollers.RejectClaim(deps.Assignments, logg))
			r.With(can(authz.CapDeliveryStatus)).Put("/orders/status", deliverycontrollers.UpdateStatus(deps.Orders, maxUpload, logg))
			r.With(can(authz.CapPaymentConfirm), idem).Post("/orders/{id}/confirm-payment", deliverycontrollers.ConfirmPayment(deps.Payments, maxUpload, logg))
			r.With(can(authz.CapAgentProfile)).Get("/orders/assigned", deliverycontrollers.AssignedOrders(deps.Assignments, logg))
			r.With(can(authz.CapAgentProfile)).Get("/earnings", deliverycontrollers.Earnings(deps.Assignments, logg))
			r.With(can(authz.CapAgentProfile)).Post("/profile", deliverycontrollers.EnsureProfile(deps.Assignments, logg))
			r.With(can(authz.CapAgentProfile)).Patch("/profile/availability", deliverycontrollers.SetAvailability(deps.Assignments, logg))
			r.With(can(authz.CapAgentVerify)).Post("/personnel/{id}/verify", deliverycontrollers.Verify(deps.Assignments, logg))
		})

		r.Route("/payouts/vendor-payments", func(r chi.Router) {
			r.With(can(authz.CapVendorPaymentsRead)).Get("/", payoutcontrollers.ListMine(deps.Commission, logg))
			r.With(can(authz.CapVendorPaymentsPay), idem).Post("/pay", payoutcontrollers.PayBatch(deps.Commission, logg))
			r.With(can(authz.CapVendorPaymentsPay)).Post("/{id}/approve", payoutcontrollers.Approve(deps.Commission, logg))
			r.With(can(authz.CapVendorPaymentsPay), idem).Post("/{id}/pay", payoutcontrollers.Pay(deps.Commission, logg))
		})
	})

	return r
}
