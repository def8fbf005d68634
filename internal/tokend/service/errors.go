package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedGrant is returned for any grant type other than
	// client_credentials.
	ErrUnsupportedGrant = errors.New("unsupported_grant")

	// ErrInvalidCredentials covers both unknown clients and wrong secrets.
	// The two cases are deliberately not distinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrScopeNotAllowed is returned when the authenticated client requests
	// a scope outside its registered set.
	ErrScopeNotAllowed = errors.New("scope_not_allowed")

	// ErrTokenNotFound is returned when a presented token is unknown to both
	// the cache and the store.
	ErrTokenNotFound = errors.New("token_not_found")

	// ErrTokenExpired is returned when a presented token exists but its
	// lifetime has elapsed.
	ErrTokenExpired = errors.New("token_expired")

	// ErrStorage wraps failures reaching or mutating the durable store.
	ErrStorage = errors.New("storage_error")
)

func storageErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
