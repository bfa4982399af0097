package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/fulfillment-engine/api/responses"
	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
)

// RateLimiter counts hits in a fixed window.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ClaimRateLimit caps how often one delivery agent can hit the claim
// endpoints. Counter failures let the request through.
func ClaimRateLimit(limiter RateLimiter, cfg config.RateLimitConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || cfg.ClaimLimit <= 0 || cfg.ClaimWindow <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			scope := strings.Join([]string{"claim", userID}, ":")
			allowed, count, err := limiter.FixedWindowAllow(r.Context(), scope, int64(cfg.ClaimLimit), cfg.ClaimWindow)
			if err != nil {
				logError(r.Context(), logg, "claim rate limit unavailable", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", retryAfter(cfg.ClaimWindow))
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many claim attempts").
					WithDetails(map[string]any{"attempts": count, "limit": cfg.ClaimLimit}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(window time.Duration) string {
	seconds := int(window.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
