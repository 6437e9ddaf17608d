package identity

import (
	"context"
	"time"
)

// Account is Agrimitra's canonical security principal.
type Account struct {
	ID           string
	Username     string
	UsernameNorm string
	Email        string
	EmailNorm    string

	DisplayName       *string
	PreferredLanguage string

	CreatedAt time.Time
}

// AccountAuth bundles an Account with its stored password verifier for login.
// IMPORTANT: PasswordHash never leaves the auth boundary and is never logged.
type AccountAuth struct {
	Account      Account
	PasswordHash string
}

// CreateAccountInput describes a signup request.
// Email, Username and Password are required and must already satisfy
// ValidateSignup; stores re-check only structural emptiness.
type CreateAccountInput struct {
	Email             string
	Username          string
	Password          string
	PreferredLanguage string
	Now               time.Time
}

// CreateAccountResult returns the created account.
type CreateAccountResult struct {
	Account Account
}

// UpdateProfileInput mutates the editable profile fields of an account.
// Nil pointers leave the corresponding field unchanged.
type UpdateProfileInput struct {
	AccountID         string
	DisplayName       *string
	PreferredLanguage *string
	Now               time.Time
}

// Store is the account persistence boundary.
//
// Uniqueness contract:
//   - Email and Username are unique under their normalized forms.
//   - Concurrent signups racing on the same email/username are resolved by
//     the store's own uniqueness enforcement; the loser receives a
//     ConflictError. No application-level locking is layered on top.
type Store interface {
	CreateAccount(ctx context.Context, in CreateAccountInput) (CreateAccountResult, error)

	GetAccountByID(ctx context.Context, id string) (Account, error)
	GetAccountAuthByEmail(ctx context.Context, email string) (AccountAuth, error)

	UpdateProfile(ctx context.Context, in UpdateProfileInput) (Account, error)
}
