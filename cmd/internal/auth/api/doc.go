// Package authapi exposes the credential issuance endpoints over HTTP/JSON.
//
// It turns raw signup/signin input into either a new account plus a session
// token, or a verified token for an existing account, and serves the
// authenticated profile routes.
package authapi
