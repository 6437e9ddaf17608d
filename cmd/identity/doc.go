// Package identity implements Agrimitra's account foundation.
//
// It contains the Account model, normalization and validation rules,
// bcrypt password hashing, ULID primitives, and the store interfaces
// used by the HTTP and WebSocket layers.
//
// This package is intentionally dependency-light and security-first.
package identity
