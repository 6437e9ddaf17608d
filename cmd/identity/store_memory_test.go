package identity

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_CreateAccount_AndLookup(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	res, err := s.CreateAccount(ctx, CreateAccountInput{
		Email:    "A@B.com",
		Username: "Farmer1",
		Password: "secret1",
		Now:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if res.Account.ID == "" {
		t.Fatalf("expected non-empty account id")
	}
	if res.Account.EmailNorm != "a@b.com" || res.Account.UsernameNorm != "farmer1" {
		t.Fatalf("normalization mismatch: %+v", res.Account)
	}
	if res.Account.PreferredLanguage != "en" {
		t.Fatalf("expected default language en, got %q", res.Account.PreferredLanguage)
	}

	got, err := s.GetAccountByID(ctx, res.Account.ID)
	if err != nil {
		t.Fatalf("GetAccountByID: %v", err)
	}
	if got.ID != res.Account.ID {
		t.Fatalf("id mismatch")
	}

	auth, err := s.GetAccountAuthByEmail(ctx, "a@B.COM")
	if err != nil {
		t.Fatalf("GetAccountAuthByEmail: %v", err)
	}
	ok, err := VerifyPassword("secret1", auth.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash must verify: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_CreateAccount_ConflictEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.CreateAccount(ctx, CreateAccountInput{
		Email: "User@Example.com", Username: "farmer1", Password: "secret1",
	}); err != nil {
		t.Fatalf("create 1: %v", err)
	}

	_, err := s.CreateAccount(ctx, CreateAccountInput{
		Email: "user@example.COM", Username: "farmer2", Password: "secret2",
	})
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestMemoryStore_CreateAccount_ConflictUsername_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.CreateAccount(ctx, CreateAccountInput{
		Email: "a@b.com", Username: "Farmer1", Password: "secret1",
	}); err != nil {
		t.Fatalf("create 1: %v", err)
	}

	_, err := s.CreateAccount(ctx, CreateAccountInput{
		Email: "c@d.com", Username: "fARMER1", Password: "secret2",
	})
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestMemoryStore_GetAccountAuthByEmail_Unknown(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, err := s.GetAccountAuthByEmail(context.Background(), "nobody@example.com")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got: %v", err)
	}
}

func TestMemoryStore_UpdateProfile(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	res, err := s.CreateAccount(ctx, CreateAccountInput{
		Email: "a@b.com", Username: "farmer1", Password: "secret1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "  Ramesh  "
	lang := "HI-in"
	got, err := s.UpdateProfile(ctx, UpdateProfileInput{
		AccountID:         res.Account.ID,
		DisplayName:       &name,
		PreferredLanguage: &lang,
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.DisplayName == nil || *got.DisplayName != "Ramesh" {
		t.Fatalf("display name not trimmed/updated: %+v", got.DisplayName)
	}
	if got.PreferredLanguage != "hi" {
		t.Fatalf("language not normalized: %q", got.PreferredLanguage)
	}

	// Nil fields leave values unchanged.
	got2, err := s.UpdateProfile(ctx, UpdateProfileInput{AccountID: res.Account.ID})
	if err != nil {
		t.Fatalf("UpdateProfile noop: %v", err)
	}
	if got2.DisplayName == nil || *got2.DisplayName != "Ramesh" || got2.PreferredLanguage != "hi" {
		t.Fatalf("noop update must not reset fields: %+v", got2)
	}
}

func TestMemoryStore_UpdateProfile_Unknown(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, err := s.UpdateProfile(context.Background(), UpdateProfileInput{AccountID: "01AAAAAAAAAAAAAAAAAAAAAAAA"})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got: %v", err)
	}
}
