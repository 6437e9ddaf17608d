package token

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_RequiresSecret(t *testing.T) {
	t.Setenv("AGRI_JWT_SECRET", "")

	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig without secret, got: %v", err)
	}
}

func TestLoadConfigFromEnv_RejectsShortSecret(t *testing.T) {
	t.Setenv("AGRI_JWT_SECRET", "too-short")

	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for short secret, got: %v", err)
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("AGRI_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AGRI_AUTH_ISSUER", "")
	t.Setenv("AGRI_AUTH_TOKEN_TTL", "")
	t.Setenv("AGRI_AUTH_CLOCK_SKEW", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "agrimitra" {
		t.Fatalf("issuer default mismatch: %q", cfg.Issuer)
	}
	if cfg.TTL != 7*24*time.Hour {
		t.Fatalf("ttl default mismatch: %v", cfg.TTL)
	}
	if cfg.ClockSkew != 30*time.Second {
		t.Fatalf("skew default mismatch: %v", cfg.ClockSkew)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("AGRI_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AGRI_AUTH_ISSUER", "agrimitra-stage")
	t.Setenv("AGRI_AUTH_TOKEN_TTL", "24h")
	t.Setenv("AGRI_AUTH_CLOCK_SKEW", "1m")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "agrimitra-stage" || cfg.TTL != 24*time.Hour || cfg.ClockSkew != time.Minute {
		t.Fatalf("override mismatch: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_RejectsBadTTL(t *testing.T) {
	t.Setenv("AGRI_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AGRI_AUTH_TOKEN_TTL", "-5m")

	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for negative ttl, got: %v", err)
	}
}
