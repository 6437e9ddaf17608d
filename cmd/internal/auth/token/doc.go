// Package token issues and verifies Agrimitra session tokens.
//
// A session token is a stateless, HMAC-SHA256-signed JWT carrying the
// account identifier and a fixed expiry. Validity is determined purely by
// signature and time checks; there is no server-side session state and no
// revocation list.
package token
