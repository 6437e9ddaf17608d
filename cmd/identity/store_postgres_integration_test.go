package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require AGRI_DATABASE_URL.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_CreateAccount_ConflictEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyAccountSchema(t, pool, schema)

	s := mustNewAccountStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := s.CreateAccount(ctx, CreateAccountInput{
		Email:    "User@Example.com",
		Username: "farmer-a",
		Password: "very-strong-password-1",
		Now:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create account 1: %v", err)
	}

	// Same email (case-insensitive) should conflict.
	_, err = s.CreateAccount(ctx, CreateAccountInput{
		Email:    "user@example.COM",
		Username: "farmer-b",
		Password: "very-strong-password-2",
		Now:      time.Now().UTC(),
	})
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestPostgresStore_CreateAccount_ConflictUsername_CaseInsensitive(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyAccountSchema(t, pool, schema)

	s := mustNewAccountStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := s.CreateAccount(ctx, CreateAccountInput{
		Email:    "a@example.com",
		Username: "Farmer",
		Password: "very-strong-password-1",
		Now:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create account 1: %v", err)
	}

	_, err = s.CreateAccount(ctx, CreateAccountInput{
		Email:    "b@example.com",
		Username: "fARMER",
		Password: "very-strong-password-2",
		Now:      time.Now().UTC(),
	})
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestPostgresStore_AuthLookup_And_UpdateProfile(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyAccountSchema(t, pool, schema)

	s := mustNewAccountStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res, err := s.CreateAccount(ctx, CreateAccountInput{
		Email:    "lookup@example.com",
		Username: "lookup-" + strings.ToLower(mustNewULIDLike(t))[:8],
		Password: "very-strong-password-3",
		Now:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	auth, err := s.GetAccountAuthByEmail(ctx, "LOOKUP@example.com")
	if err != nil {
		t.Fatalf("auth lookup: %v", err)
	}
	if auth.Account.ID != res.Account.ID {
		t.Fatalf("account id mismatch")
	}
	ok, err := VerifyPassword("very-strong-password-3", auth.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash must verify: ok=%v err=%v", ok, err)
	}

	name := "Shetkari"
	lang := "mr"
	updated, err := s.UpdateProfile(ctx, UpdateProfileInput{
		AccountID:         res.Account.ID,
		DisplayName:       &name,
		PreferredLanguage: &lang,
		Now:               time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.DisplayName == nil || *updated.DisplayName != name || updated.PreferredLanguage != "mr" {
		t.Fatalf("profile not updated: %+v", updated)
	}

	if _, err := s.GetAccountAuthByEmail(ctx, "unknown@example.com"); !IsNotFound(err) {
		t.Fatalf("expected not found, got: %v", err)
	}
}

// ---- helpers ----

func mustNewAccountStore(t *testing.T, pool *pgxpool.Pool, schema string) *PostgresStore {
	t.Helper()
	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("AGRI_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: AGRI_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse AGRI_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	// Validate acquire quickly (fast fail).
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (AGRI_DATABASE_URL set): %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "agri_it_" + strings.ToLower(mustNewULIDLike(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgxIdent1(schema)); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgxIdent1(schema)+` CASCADE`)
}

func mustApplyAccountSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	accounts := pgIdent(schema, "accounts")
	creds := pgIdent(schema, "account_credentials")

	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  username_norm TEXT NOT NULL,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  display_name TEXT NULL,
  preferred_language TEXT NOT NULL DEFAULT 'en',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_accounts_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT uq_accounts_username_norm UNIQUE (username_norm),
  CONSTRAINT uq_accounts_email_norm UNIQUE (email_norm)
);

CREATE TABLE IF NOT EXISTS %s (
  account_id TEXT PRIMARY KEY REFERENCES %s(id) ON DELETE CASCADE,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`, accounts, creds, accounts)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func mustNewULIDLike(t *testing.T) string {
	t.Helper()

	id, err := NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	return id
}

func pgxIdent1(ident string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection in dynamic DDL.
	return pgx.Identifier{ident}.Sanitize()
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "i/o timeout")
}
