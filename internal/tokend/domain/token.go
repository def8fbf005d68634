package domain

import "time"

// GrantClientCredentials is the only grant type the service issues tokens
// for (RFC 6749 §4.4).
const GrantClientCredentials = "client_credentials"

// TokenTypeBearer is the token_type reported on issuance (RFC 6750).
const TokenTypeBearer = "Bearer"

// Token is an issued bearer access token bound to one (client, scope) pair.
// At most one live token exists per pair; minting a replacement deletes the
// previous row in the same transaction.
type Token struct {
	// Value is the opaque bearer string handed to the client.
	Value string

	// ClientID identifies the client the token was issued to.
	ClientID string

	// Scope is the single scope the token authorizes.
	Scope string

	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is no longer valid at the given instant.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Remaining returns the lifetime left at the given instant. It is negative
// once the token has expired.
func (t *Token) Remaining(now time.Time) time.Duration {
	return t.ExpiresAt.Sub(now)
}
