package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agrimitra/cmd/identity"
	"agrimitra/cmd/internal/auth/gate"
	"agrimitra/cmd/internal/auth/token"
	"agrimitra/cmd/internal/metrics"
)

// Handler wires HTTP auth endpoints to the account store and token manager.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	store  identity.Store
	tokens token.Manager
	gate   *gate.Gate

	dummyHash string
}

// NewHandler constructs an auth Handler over an account store.
func NewHandler(log *slog.Logger, cfg Config, store identity.Store, tokens token.Manager, g *gate.Gate) (*Handler, error) {
	if store == nil {
		return nil, errors.New("auth: nil account store")
	}
	if tokens == nil {
		return nil, errors.New("auth: nil token manager")
	}
	if g == nil {
		return nil, errors.New("auth: nil gate")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:    log,
		cfg:    cfg,
		store:  store,
		tokens: tokens,
		gate:   g,
	}

	// Dummy hash for timing-resistant signin checks.
	if hash, err := identity.HashPassword("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/users/signup", h.handleSignup)
	mux.HandleFunc("/api/users/signin", h.handleSignin)
	mux.Handle("/api/users/me", h.gate.Middleware(http.HandlerFunc(h.handleMe)))
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		metrics.SignupsTotal.WithLabelValues("validation_error").Inc()
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)

	// Input shape is rejected before any store access.
	if err := identity.ValidateSignup(email, username, req.Password); err != nil {
		var ve identity.ValidationError
		if errors.As(err, &ve) {
			metrics.SignupsTotal.WithLabelValues("validation_error").Inc()
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", "validation failed", ve.Fields)
			return
		}
		metrics.SignupsTotal.WithLabelValues("validation_error").Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	res, err := h.store.CreateAccount(ctx, identity.CreateAccountInput{
		Email:             email,
		Username:          username,
		Password:          req.Password,
		PreferredLanguage: req.PreferredLanguage,
		Now:               now,
	})
	if err != nil {
		var ce identity.ConflictError
		switch {
		case errors.As(err, &ce):
			metrics.SignupsTotal.WithLabelValues("conflict").Inc()
			writeFieldErrors(w, http.StatusBadRequest, "conflict",
				"Email or username already in use",
				map[string]string{ce.Field: "already in use"})
		case identity.IsInvalidInput(err):
			metrics.SignupsTotal.WithLabelValues("validation_error").Inc()
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		default:
			metrics.SignupsTotal.WithLabelValues("internal_error").Inc()
			h.log.Error("auth.signup.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}
		return
	}

	tok, _, err := h.tokens.Issue(res.Account.ID, now)
	if err != nil {
		metrics.SignupsTotal.WithLabelValues("internal_error").Inc()
		h.log.Error("auth.signup.token.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	metrics.SignupsTotal.WithLabelValues("ok").Inc()
	h.log.Info("auth.signup.ok", "account_id", res.Account.ID)
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok})
}

func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req signinRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		metrics.SigninsTotal.WithLabelValues("validation_error").Inc()
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		metrics.SigninsTotal.WithLabelValues("validation_error").Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	auth, err := h.store.GetAccountAuthByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
			// Timing resistance: perform a dummy verify when the account is missing,
			// and answer exactly like a wrong password (no enumeration).
			if h.dummyHash != "" {
				_, _ = identity.VerifyPassword(req.Password, h.dummyHash)
			}
			h.invalidCredentials(w, "unknown_email")
			return
		}
		metrics.SigninsTotal.WithLabelValues("internal_error").Inc()
		h.log.Error("auth.signin.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	ok, err := identity.VerifyPassword(req.Password, auth.PasswordHash)
	if err != nil {
		metrics.SigninsTotal.WithLabelValues("internal_error").Inc()
		h.log.Error("auth.signin.verify.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if !ok {
		h.invalidCredentials(w, "bad_password")
		return
	}

	tok, _, err := h.tokens.Issue(auth.Account.ID, now)
	if err != nil {
		metrics.SigninsTotal.WithLabelValues("internal_error").Inc()
		h.log.Error("auth.signin.token.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	metrics.SigninsTotal.WithLabelValues("ok").Inc()
	h.log.Info("auth.signin.ok", "account_id", auth.Account.ID)
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok})
}

// invalidCredentials answers uniformly for unknown email and wrong password.
// The distinguishing reason is logged server-side only.
func (h *Handler) invalidCredentials(w http.ResponseWriter, reason string) {
	metrics.SigninsTotal.WithLabelValues("invalid_credentials").Inc()
	h.log.Info("auth.signin.rejected", "reason", reason)
	writeError(w, http.StatusBadRequest, "invalid_credentials", "Invalid credentials")
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleMeGet(w, r)
	case http.MethodPatch:
		h.handleMePatch(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleMeGet(w http.ResponseWriter, r *http.Request) {
	ac, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_credential", "Invalid or expired token")
		return
	}

	acc, err := h.store.GetAccountByID(r.Context(), ac.AccountID)
	if err != nil {
		// The token's account may have been deleted after issuance.
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "invalid_credential", "Invalid or expired token")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(acc))
}

func (h *Handler) handleMePatch(w http.ResponseWriter, r *http.Request) {
	ac, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_credential", "Invalid or expired token")
		return
	}

	var req profileUpdateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.DisplayName == nil && req.PreferredLanguage == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
		return
	}

	acc, err := h.store.UpdateProfile(r.Context(), identity.UpdateProfileInput{
		AccountID:         ac.AccountID,
		DisplayName:       req.DisplayName,
		PreferredLanguage: req.PreferredLanguage,
		Now:               time.Now().UTC(),
	})
	if err != nil {
		switch {
		case identity.IsNotFound(err):
			writeError(w, http.StatusUnauthorized, "invalid_credential", "Invalid or expired token")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		default:
			h.log.Error("auth.me.update.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(acc))
}

func toProfileResponse(a identity.Account) profileResponse {
	return profileResponse{
		ID:                a.ID,
		Username:          a.Username,
		Email:             a.Email,
		DisplayName:       a.DisplayName,
		PreferredLanguage: a.PreferredLanguage,
		CreatedAt:         a.CreatedAt,
	}
}
