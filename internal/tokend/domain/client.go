// Package domain defines the core entities of the token service. It has no
// dependencies on storage, transport, or caching so that every other layer
// can share the same types.
package domain

import (
	"slices"
	"strings"
	"time"
)

// Client is a registered OAuth2 client allowed to use the
// client_credentials grant.
type Client struct {
	// ID is the public client identifier presented on token requests.
	ID string

	// SecretHash is the argon2id PHC-encoded hash of the client secret.
	// The plaintext secret is never stored.
	SecretHash string

	// Scopes is the set of scope strings the client may request.
	Scopes []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasScope reports whether the client is allowed to request the given scope.
func (c *Client) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// EncodeScopes joins a scope set into its canonical space-delimited form for
// storage and wire transport.
func EncodeScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// DecodeScopes splits a space-delimited scope string into a scope set,
// dropping empty fields.
func DecodeScopes(s string) []string {
	return strings.Fields(s)
}
