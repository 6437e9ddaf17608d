package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a dev/test fallback when a database is not configured.
// It enforces the same uniqueness contract as the Postgres store: the
// normalized email/username maps are updated under one mutex, so racing
// signups resolve to exactly one winner and a ConflictError for the rest.
type MemoryStore struct {
	mu         sync.Mutex
	byID       map[string]*memAccount
	byEmail    map[string]string // email_norm -> id
	byUsername map[string]string // username_norm -> id
}

type memAccount struct {
	account      Account
	passwordHash string
}

// NewMemoryStore constructs an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]*memAccount),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

// CreateAccount creates an account, enforcing email/username uniqueness.
func (s *MemoryStore) CreateAccount(ctx context.Context, in CreateAccountInput) (CreateAccountResult, error) {
	const op = "identity.CreateAccount"

	if err := ctx.Err(); err != nil {
		return CreateAccountResult{}, err
	}

	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" {
		return CreateAccountResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email and username are required"}
	}
	if in.Password == "" {
		return CreateAccountResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password is required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	emailNorm := NormalizeEmail(email)
	usernameNorm := NormalizeUsername(username)
	lang := NormalizeLanguage(in.PreferredLanguage)
	if lang == "" {
		lang = "en"
	}

	// Hash outside the lock: bcrypt is deliberately slow.
	pwHash, err := HashPassword(in.Password)
	if err != nil {
		return CreateAccountResult{}, err
	}

	id, err := NewULID(now)
	if err != nil {
		return CreateAccountResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[emailNorm]; exists {
		return CreateAccountResult{}, ConflictError{Op: op, Field: "email"}
	}
	if _, exists := s.byUsername[usernameNorm]; exists {
		return CreateAccountResult{}, ConflictError{Op: op, Field: "username"}
	}

	acc := Account{
		ID:                id,
		Username:          username,
		UsernameNorm:      usernameNorm,
		Email:             email,
		EmailNorm:         emailNorm,
		PreferredLanguage: lang,
		CreatedAt:         now,
	}

	s.byID[id] = &memAccount{account: acc, passwordHash: pwHash}
	s.byEmail[emailNorm] = id
	s.byUsername[usernameNorm] = id

	return CreateAccountResult{Account: acc}, nil
}

// GetAccountByID fetches an account by id.
func (s *MemoryStore) GetAccountByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetAccountByID"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing account id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}
	return rec.account, nil
}

// GetAccountAuthByEmail fetches account + password hash by normalized email.
func (s *MemoryStore) GetAccountAuthByEmail(ctx context.Context, email string) (AccountAuth, error) {
	const op = "identity.GetAccountAuthByEmail"

	if err := ctx.Err(); err != nil {
		return AccountAuth{}, err
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return AccountAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing email"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[norm]
	if !ok {
		return AccountAuth{}, NotFoundError{Op: op, Resource: "account"}
	}
	rec := s.byID[id]
	return AccountAuth{Account: rec.account, PasswordHash: rec.passwordHash}, nil
}

// UpdateProfile updates display name and/or preferred language.
func (s *MemoryStore) UpdateProfile(ctx context.Context, in UpdateProfileInput) (Account, error) {
	const op = "identity.UpdateProfile"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	id := strings.TrimSpace(in.AccountID)
	if id == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing account id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}

	if in.DisplayName != nil {
		rec.account.DisplayName = pgTrimPtr(in.DisplayName)
	}
	if in.PreferredLanguage != nil {
		n := NormalizeLanguage(*in.PreferredLanguage)
		if n == "" {
			return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "invalid preferred_language"}
		}
		rec.account.PreferredLanguage = n
	}

	return rec.account, nil
}
