package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements account persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Uniqueness of email/username is enforced by unique indexes on the
//   normalized columns; violations are mapped to ConflictError.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the account store (default "agrimitra").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "agrimitra",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// CreateAccount creates a new account and its credentials transactionally.
func (s *PostgresStore) CreateAccount(ctx context.Context, in CreateAccountInput) (CreateAccountResult, error) {
	const op = "identity.CreateAccount"

	if s == nil || s.pool == nil {
		return CreateAccountResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return CreateAccountResult{}, err
	}

	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" {
		return CreateAccountResult{}, pgInvalid(op, "email and username are required")
	}
	if in.Password == "" {
		return CreateAccountResult{}, pgInvalid(op, "password is required")
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

	pwHash, err := HashPassword(in.Password)
	if err != nil {
		return CreateAccountResult{}, err
	}

	accountID, err := NewULID(now)
	if err != nil {
		return CreateAccountResult{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return CreateAccountResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	accounts := pgIdent(s.schema, "accounts")
	creds := pgIdent(s.schema, "account_credentials")

	_, err = tx.Exec(ctx,
		`INSERT INTO `+accounts+` (
		     id, username, username_norm, email, email_norm, preferred_language, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		accountID,
		username,
		usernameNorm,
		email,
		emailNorm,
		lang,
		now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return CreateAccountResult{}, ConflictError{Op: op, Field: field}
		}
		return CreateAccountResult{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+creds+` (account_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)`,
		accountID, pwHash, now,
	)
	if err != nil {
		// An FK failure here indicates programming/schema inconsistency.
		return CreateAccountResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CreateAccountResult{}, err
	}

	out := Account{
		ID:                accountID,
		Username:          username,
		UsernameNorm:      usernameNorm,
		Email:             email,
		EmailNorm:         emailNorm,
		PreferredLanguage: lang,
		CreatedAt:         now,
	}

	return CreateAccountResult{Account: out}, nil
}

// GetAccountByID fetches an account by primary key.
func (s *PostgresStore) GetAccountByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetAccountByID"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, pgInvalid(op, "missing account id")
	}

	accounts := pgIdent(s.schema, "accounts")

	var out Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, username_norm, email, email_norm, display_name, preferred_language, created_at
		   FROM `+accounts+`
		  WHERE id = $1`,
		id,
	).Scan(
		&out.ID,
		&out.Username,
		&out.UsernameNorm,
		&out.Email,
		&out.EmailNorm,
		&out.DisplayName,
		&out.PreferredLanguage,
		&out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Account{}, err
	}
	return out, nil
}

// GetAccountAuthByEmail fetches an account plus its password hash for login.
// Lookup is by normalized email. Returns ErrNotFound for unknown addresses;
// the caller is responsible for keeping the client-visible failure uniform.
func (s *PostgresStore) GetAccountAuthByEmail(ctx context.Context, email string) (AccountAuth, error) {
	const op = "identity.GetAccountAuthByEmail"

	if s == nil || s.pool == nil {
		return AccountAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return AccountAuth{}, err
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return AccountAuth{}, pgInvalid(op, "missing email")
	}

	accounts := pgIdent(s.schema, "accounts")
	creds := pgIdent(s.schema, "account_credentials")

	var out AccountAuth
	err := s.pool.QueryRow(ctx,
		`SELECT a.id, a.username, a.username_norm, a.email, a.email_norm,
		        a.display_name, a.preferred_language, a.created_at,
		        c.password_hash
		   FROM `+accounts+` a
		   JOIN `+creds+` c ON c.account_id = a.id
		  WHERE a.email_norm = $1`,
		norm,
	).Scan(
		&out.Account.ID,
		&out.Account.Username,
		&out.Account.UsernameNorm,
		&out.Account.Email,
		&out.Account.EmailNorm,
		&out.Account.DisplayName,
		&out.Account.PreferredLanguage,
		&out.Account.CreatedAt,
		&out.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountAuth{}, NotFoundError{Op: op, Resource: "account"}
		}
		return AccountAuth{}, err
	}
	return out, nil
}

// UpdateProfile updates display name and/or preferred language.
func (s *PostgresStore) UpdateProfile(ctx context.Context, in UpdateProfileInput) (Account, error) {
	const op = "identity.UpdateProfile"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	id := strings.TrimSpace(in.AccountID)
	if id == "" {
		return Account{}, pgInvalid(op, "missing account id")
	}
	if in.DisplayName == nil && in.PreferredLanguage == nil {
		return s.GetAccountByID(ctx, id)
	}

	displayName := pgTrimPtr(in.DisplayName)
	var lang *string
	if in.PreferredLanguage != nil {
		n := NormalizeLanguage(*in.PreferredLanguage)
		if n == "" {
			return Account{}, pgInvalid(op, "invalid preferred_language")
		}
		lang = &n
	}

	accounts := pgIdent(s.schema, "accounts")

	var out Account
	err := s.pool.QueryRow(ctx,
		`UPDATE `+accounts+`
		    SET display_name = COALESCE($2, display_name),
		        preferred_language = COALESCE($3, preferred_language)
		  WHERE id = $1
		  RETURNING id, username, username_norm, email, email_norm, display_name, preferred_language, created_at`,
		id, displayName, lang,
	).Scan(
		&out.ID,
		&out.Username,
		&out.UsernameNorm,
		&out.Email,
		&out.EmailNorm,
		&out.DisplayName,
		&out.PreferredLanguage,
		&out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Account{}, err
	}
	return out, nil
}

// ---- helpers ----

// pgTrimPtr trims a string pointer, returning nil if result is empty.
func pgTrimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to heuristic substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_accounts_username_norm":
		return "username", true
	case "uq_accounts_email_norm":
		return "email", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		default:
			return "unique", true
		}
	}
}
