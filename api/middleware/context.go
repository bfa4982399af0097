package middleware

import (
	"context"

	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
)

type contextKey string

const ctxPrincipal contextKey = "principal"

// WithPrincipal injects the authenticated caller into the context.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, p)
}

// PrincipalFromContext returns the caller seeded by Auth.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	if ctx == nil {
		return auth.Principal{}, false
	}
	p, ok := ctx.Value(ctxPrincipal).(auth.Principal)
	return p, ok
}

func UserIDFromContext(ctx context.Context) string {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ""
	}
	return p.UserID.String()
}

func RoleFromContext(ctx context.Context) string {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ""
	}
	return p.Role.String()
}

// CallerFromContext is PrincipalFromContext folded into an unauthorized error.
func CallerFromContext(ctx context.Context) (auth.Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return auth.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return p, nil
}
