package identity

import (
	"strings"
	"testing"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if strings.Contains(hash, "secret1") {
		t.Fatalf("hash must not contain the plaintext")
	}

	ok, err := VerifyPassword("secret1", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatalf("expected password to verify")
	}

	ok, err = VerifyPassword("wrong-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword mismatch: %v", err)
	}
	if ok {
		t.Fatalf("wrong password must not verify")
	}
}

func TestHashPassword_RejectsShort(t *testing.T) {
	t.Parallel()

	if _, err := HashPassword("five5"[:5]); err == nil {
		t.Fatalf("expected error for short password")
	}
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash 1: %v", err)
	}
	h2, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash 2: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("two hashes of the same password must differ (random salt)")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	t.Parallel()

	if _, err := VerifyPassword("secret1", "not-a-bcrypt-hash"); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
}
