package gate

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agrimitra/cmd/internal/auth/token"
)

func testGate(t *testing.T) (*Gate, token.Manager) {
	t.Helper()

	cfg := token.DefaultConfig()
	cfg.Secret = []byte("0123456789abcdef0123456789abcdef")
	mgr, err := token.NewHMACManager(cfg)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}

	g, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), mgr)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	return g, mgr
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	t.Parallel()

	g, _ := testGate(t)
	_, err := g.Authenticate("", time.Now().UTC())
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got: %v", err)
	}
}

func TestAuthenticate_WrongScheme(t *testing.T) {
	t.Parallel()

	g, mgr := testGate(t)
	tok, _, err := mgr.Issue("01HZZZZZZZZZZZZZZZZZZZZZZZ", time.Now().UTC())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []string{
		"Token " + tok,
		"Basic dXNlcjpwYXNz",
		"Bearer",
		"Bearer ",
	}
	for _, h := range cases {
		if _, err := g.Authenticate(h, time.Now().UTC()); !errors.Is(err, ErrMalformedCredential) {
			t.Fatalf("header %q: expected ErrMalformedCredential, got: %v", h, err)
		}
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	t.Parallel()

	g, _ := testGate(t)
	if _, err := g.Authenticate("Bearer not-a-token", time.Now().UTC()); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got: %v", err)
	}
}

func TestAuthenticate_Expired(t *testing.T) {
	t.Parallel()

	g, mgr := testGate(t)
	tok, _, err := mgr.Issue("01HZZZZZZZZZZZZZZZZZZZZZZZ", time.Now().UTC().Add(-8*24*time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := g.Authenticate("Bearer "+tok, time.Now().UTC()); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for expired token, got: %v", err)
	}
}

func TestAuthenticate_OK(t *testing.T) {
	t.Parallel()

	g, mgr := testGate(t)
	now := time.Now().UTC()
	tok, exp, err := mgr.Issue("01HZZZZZZZZZZZZZZZZZZZZZZZ", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	ac, err := g.Authenticate("bearer "+tok, now)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ac.AccountID != "01HZZZZZZZZZZZZZZZZZZZZZZZ" {
		t.Fatalf("account id mismatch: %q", ac.AccountID)
	}
	if !ac.TokenExpiresAt.Equal(exp.Truncate(time.Second)) && !ac.TokenExpiresAt.Equal(exp) {
		t.Fatalf("expiry mismatch: %v vs %v", ac.TokenExpiresAt, exp)
	}
}

func TestMiddleware_RejectsAndPasses(t *testing.T) {
	t.Parallel()

	g, mgr := testGate(t)

	var seen AuthContext
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := FromContext(r.Context())
		if !ok {
			t.Fatalf("expected auth context in request")
		}
		seen = ac
		w.WriteHeader(http.StatusOK)
	}))

	// Missing header.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/questions", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "missing_credential" {
		t.Fatalf("code mismatch: %v", body)
	}

	// Wrong scheme.
	req := httptest.NewRequest(http.MethodGet, "/api/questions", nil)
	req.Header.Set("Authorization", "Token xyz")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong scheme, got %d", rr.Code)
	}

	// Valid token passes through with identity attached.
	tok, _, err := mgr.Issue("01HZZZZZZZZZZZZZZZZZZZZZZZ", time.Now().UTC())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/questions", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if seen.AccountID != "01HZZZZZZZZZZZZZZZZZZZZZZZ" {
		t.Fatalf("context account mismatch: %q", seen.AccountID)
	}
}
