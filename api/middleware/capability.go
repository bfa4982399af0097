package middleware

import (
	"net/http"

	"github.com/angelmondragon/fulfillment-engine/api/responses"
	"github.com/angelmondragon/fulfillment-engine/internal/authz"
	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
)

// CapabilityChecker is the slice of authz.Service the router needs.
type CapabilityChecker interface {
	Require(p auth.Principal, capability authz.Capability) error
}

// RequireCapability rejects callers whose role (or vendor tier) lacks the
// capability. Ownership checks stay in the services.
func RequireCapability(checker CapabilityChecker, capability authz.Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if checker != nil {
				if err := checker.Require(principal, capability); err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
