// Package oauthx holds the OAuth2 wire types shared between the HTTP
// handlers and their tests.
package oauthx

// TokenResponse is the success body of the token endpoint (RFC 6749 §5.1).
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds until expiry
	Scope       string `json:"scope,omitempty"`
}

// CheckResponse is the success body of the check endpoint: the identity the
// presented bearer token was issued for.
type CheckResponse struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
}

// ErrorResponse is the RFC 6749 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// HealthResponse is returned by the livez/readyz endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the status of critical dependencies.
type HealthChecks struct {
	Database    string `json:"database"`
	Credentials string `json:"credentials"`
}
