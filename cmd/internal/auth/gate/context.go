package gate

import (
	"context"
	"time"
)

// AuthContext is the request-scoped identity established by a verified token.
// It is created per request and discarded at the end of the request.
type AuthContext struct {
	AccountID      string
	TokenIssuedAt  time.Time
	TokenExpiresAt time.Time
}

type authContextKey struct{}

// WithAuthContext attaches a verified identity to ctx.
func WithAuthContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// FromContext extracts the identity established by the gate, if any.
func FromContext(ctx context.Context) (AuthContext, bool) {
	if ctx == nil {
		return AuthContext{}, false
	}
	ac, ok := ctx.Value(authContextKey{}).(AuthContext)
	return ac, ok
}
