// Package gate is the per-request bearer-token check in front of protected
// routes.
//
// It verifies the Authorization header, establishes the caller's identity in
// the request context, and rejects with 401 otherwise. The gate performs no
// authorization: handlers decide what the authenticated account may do.
package gate
