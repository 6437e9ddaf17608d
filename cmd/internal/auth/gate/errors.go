package gate

import "errors"

var (
	// ErrMissingCredential is returned when the Authorization header is absent.
	ErrMissingCredential = errors.New("missing credential")

	// ErrMalformedCredential is returned when the header does not match the
	// "Bearer <token>" shape.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrInvalidCredential is returned when signature verification fails,
	// the token is expired, or the payload is structurally invalid.
	ErrInvalidCredential = errors.New("invalid credential")
)
