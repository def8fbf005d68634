package store

import (
	"context"
	"errors"
	"time"

	"github.com/midgardlabs/tokend/internal/tokend/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to actively stop people from accidentally opening
// transactions within transactions.
type Store interface {
	Clients() Clients
	Tokens() Tokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., token
	// rotation). The caller MUST call Commit() or Rollback() on the
	// returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Clients interface {
	// GetClientByID fetches a client for the client_credentials grant.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// ListClients returns all registered clients ordered by id.
	ListClients(ctx context.Context) ([]domain.Client, error)

	// CreateClient inserts a new client. The secret must already be hashed.
	CreateClient(ctx context.Context, c domain.Client) error

	// UpsertClient inserts a client or replaces its secret hash and scopes
	// if it already exists. Used by seed loading.
	UpsertClient(ctx context.Context, c domain.Client) error

	// DeleteClient cascades to tokens (per schema).
	DeleteClient(ctx context.Context, clientID string) error

	// IsEmpty returns true if there are no clients.
	IsEmpty(ctx context.Context) (bool, error)
}

type Tokens interface {
	// GetTokenByValue fetches a token row by its opaque bearer value.
	GetTokenByValue(ctx context.Context, value string) (domain.Token, error)

	// GetActiveToken returns the live token for a (client, scope) pair, if
	// one exists. Expiry is the caller's concern.
	GetActiveToken(ctx context.Context, clientID, scope string) (domain.Token, error)

	// CreateToken inserts a freshly minted token row.
	CreateToken(ctx context.Context, t domain.Token) error

	// DeleteTokensForClientScope removes every token row for a (client,
	// scope) pair. Run inside the mint transaction before CreateToken.
	DeleteTokensForClientScope(ctx context.Context, clientID, scope string) error

	// DeleteTokenByValue removes a single token row.
	DeleteTokenByValue(ctx context.Context, value string) error

	// DeleteExpiredTokens removes rows past the given instant and reports
	// how many were deleted. Housekeeping.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}
