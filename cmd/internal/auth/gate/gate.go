package gate

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agrimitra/cmd/internal/auth/token"
	"agrimitra/cmd/internal/metrics"
)

// Gate verifies bearer tokens for protected routes.
//
// Per-request checks, in order: header present, scheme is "Bearer" with a
// non-empty token, signature valid, not expired. Any failing check rejects
// the request; there is no retry within a request.
type Gate struct {
	log    *slog.Logger
	tokens token.Manager
}

// New constructs a Gate over a token manager.
func New(log *slog.Logger, tokens token.Manager) (*Gate, error) {
	if tokens == nil {
		return nil, errors.New("gate: nil token manager")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{log: log, tokens: tokens}, nil
}

// Authenticate verifies the raw Authorization header value and returns the
// caller's identity. The returned error is one of ErrMissingCredential,
// ErrMalformedCredential or ErrInvalidCredential.
func (g *Gate) Authenticate(authorization string, now time.Time) (AuthContext, error) {
	raw := strings.TrimSpace(authorization)
	if raw == "" {
		return AuthContext{}, ErrMissingCredential
	}

	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return AuthContext{}, ErrMalformedCredential
	}
	tok := strings.TrimSpace(parts[1])
	if tok == "" {
		return AuthContext{}, ErrMalformedCredential
	}

	claims, err := g.tokens.Verify(tok, now)
	if err != nil {
		return AuthContext{}, ErrInvalidCredential
	}

	return AuthContext{
		AccountID:      claims.AccountID,
		TokenIssuedAt:  claims.IssuedAt,
		TokenExpiresAt: claims.ExpiresAt,
	}, nil
}

// Middleware wraps next, rejecting unauthenticated requests with 401.
// On success the account identity is available via FromContext.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, err := g.Authenticate(r.Header.Get("Authorization"), time.Now().UTC())
		if err != nil {
			g.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, err error) {
	var code, msg, reason string
	switch {
	case errors.Is(err, ErrMissingCredential):
		code, msg, reason = "missing_credential", "Missing Authorization header", "missing"
	case errors.Is(err, ErrMalformedCredential):
		code, msg, reason = "malformed_credential", "Invalid Authorization format", "malformed"
	default:
		// The precise verification failure is logged, never echoed.
		code, msg, reason = "invalid_credential", "Invalid or expired token", "invalid"
	}

	metrics.GateRejectionsTotal.WithLabelValues(reason).Inc()
	g.log.Info("gate.reject",
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
	)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
