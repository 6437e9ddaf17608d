package identity

import (
	"fmt"
	"net/mail"
	"strings"
)

const (
	// Username length bounds, inclusive.
	UsernameMinLen = 3
	UsernameMaxLen = 20

	// PasswordMinLen is the minimum accepted password length.
	PasswordMinLen = 6
	// PasswordMaxLen bounds input before hashing (bcrypt truncates at 72 bytes).
	PasswordMaxLen = 72
)

// ValidateSignup checks signup input shape before any store access.
// It returns a ValidationError with per-field messages on failure.
func ValidateSignup(email, username, password string) error {
	const op = "identity.ValidateSignup"

	fields := map[string]string{}

	if msg := validateEmail(email); msg != "" {
		fields["email"] = msg
	}
	if msg := validateUsername(username); msg != "" {
		fields["username"] = msg
	}
	if msg := ValidatePassword(password); msg != "" {
		fields["password"] = msg
	}

	if len(fields) > 0 {
		return ValidationError{Op: op, Fields: fields}
	}
	return nil
}

// ValidatePassword returns an empty string when the password is acceptable,
// or a client-safe message describing the violated constraint.
func ValidatePassword(password string) string {
	// No TrimSpace here: leading/trailing spaces are legal password bytes.
	if len(password) < PasswordMinLen {
		return fmt.Sprintf("must be at least %d characters", PasswordMinLen)
	}
	if len(password) > PasswordMaxLen {
		return fmt.Sprintf("must be at most %d characters", PasswordMaxLen)
	}
	return ""
}

func validateEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "is required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "must be a valid email address"
	}
	return ""
}

func validateUsername(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return "is required"
	}
	n := len(username)
	if n < UsernameMinLen || n > UsernameMaxLen {
		return fmt.Sprintf("must be between %d and %d characters", UsernameMinLen, UsernameMaxLen)
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
		default:
			return "may only contain letters, digits, '_', '.' and '-'"
		}
	}
	return ""
}
