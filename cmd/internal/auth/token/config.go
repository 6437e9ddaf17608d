package token

import (
	"os"
	"strings"
	"time"
)

const minSecretBytes = 32

// Config defines runtime configuration for session tokens.
//
// It is intentionally explicit and environment-driven so that production
// deployments can tune security parameters without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim.
	Issuer string

	// TTL defines the token lifetime. Issuance always applies the full TTL;
	// there is no per-client variation.
	TTL time.Duration

	// ClockSkew defines the allowed time skew during validation.
	ClockSkew time.Duration

	// Secret is the HMAC-SHA256 signing key. Minimum 32 bytes.
	Secret []byte
}

// DefaultConfig returns defaults suitable for development.
// The signing secret has no default and must always be provided.
func DefaultConfig() Config {
	return Config{
		Issuer:    "agrimitra",
		TTL:       7 * 24 * time.Hour,
		ClockSkew: 30 * time.Second,
	}
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Required:
//   - AGRI_JWT_SECRET (>= 32 bytes, used as raw key material)
//
// Optional:
//   - AGRI_AUTH_ISSUER
//   - AGRI_AUTH_TOKEN_TTL (Go duration)
//   - AGRI_AUTH_CLOCK_SKEW (Go duration)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("AGRI_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	if v := strings.TrimSpace(os.Getenv("AGRI_AUTH_TOKEN_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	if v := strings.TrimSpace(os.Getenv("AGRI_AUTH_CLOCK_SKEW")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	secret := os.Getenv("AGRI_JWT_SECRET")
	if len(secret) < minSecretBytes {
		return Config{}, ErrConfig
	}
	cfg.Secret = []byte(secret)

	return cfg, nil
}
