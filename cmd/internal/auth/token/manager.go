package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the minimal identity envelope carried by a session token.
type Claims struct {
	AccountID string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

// Manager issues and verifies session tokens.
type Manager interface {
	Issue(accountID string, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (Claims, error)
}

type hmacManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
	secret    []byte
}

// NewHMACManager builds a Manager signing with HMAC-SHA256.
//
// The signature covers the full payload, so any claim tampering invalidates
// the token. Verification pins the algorithm to HS256 to rule out
// algorithm-confusion attacks.
func NewHMACManager(cfg Config) (Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, ErrConfig
	}
	if cfg.TTL <= 0 || cfg.ClockSkew < 0 {
		return nil, ErrConfig
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, ErrConfig
	}

	return &hmacManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
		secret:    cfg.Secret,
	}, nil
}

func (m *hmacManager) Issue(accountID string, now time.Time) (string, time.Time, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp := now.Add(m.ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *hmacManager) Verify(tokenStr string, now time.Time) (Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return Claims{}, ErrInvalidToken
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if m.clockSkew > 0 {
		opts = append(opts, jwt.WithLeeway(m.clockSkew))
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" || claims.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		AccountID: sub,
		ExpiresAt: claims.ExpiresAt.Time,
		Issuer:    claims.Issuer,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
