package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/midgardlabs/tokend/internal/tokend/cache"
	"github.com/midgardlabs/tokend/internal/tokend/domain"
	"github.com/midgardlabs/tokend/internal/tokend/store"
	"github.com/midgardlabs/tokend/pkg/cryptox"
	"github.com/midgardlabs/tokend/pkg/slogx"
)

const (
	// DefaultTokenTTL is the lifetime of freshly minted tokens.
	DefaultTokenTTL = 2 * time.Hour

	// DefaultQueryTimeout bounds each individual store operation.
	DefaultQueryTimeout = 5 * time.Second

	storeMaxRetries = 3
)

// TokenService issues and validates bearer tokens for the client_credentials
// grant. Credential checks are served from the preloaded credential cache;
// token state lives in the token cache with the store as the durable layer.
type TokenService struct {
	Credentials *cache.CredentialCache
	Tokens      *cache.TokenCache
	Store       store.Store

	// TokenTTL is the lifetime of newly minted tokens.
	TokenTTL time.Duration

	// QueryTimeout bounds each store call made on behalf of a request.
	QueryTimeout time.Duration

	// decoyHash is verified against when the client is unknown so that the
	// unknown-client path costs the same as a wrong-secret path.
	decoyHash string

	// mint collapses concurrent mints for the same (client, scope) pair
	// into a single store transaction.
	mint singleflight.Group
}

// NewTokenService wires a token service over the given caches and store.
func NewTokenService(creds *cache.CredentialCache, tokens *cache.TokenCache, st store.Store, ttl time.Duration) (*TokenService, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	decoy, err := cryptox.HashClientSecret(uuid.NewString())
	if err != nil {
		return nil, err
	}

	return &TokenService{
		Credentials:  creds,
		Tokens:       tokens,
		Store:        st,
		TokenTTL:     ttl,
		QueryTimeout: DefaultQueryTimeout,
		decoyHash:    decoy,
	}, nil
}

// Issue implements the client_credentials grant. It authenticates the client
// against the credential cache, checks the requested scope, and then either
// reuses the live token for the (client, scope) pair or mints a replacement.
//
// A live token is reused only while more than half its lifetime remains;
// past that point a new token is minted and the old one is atomically
// retired, so a pair never has two live tokens.
func (s *TokenService) Issue(ctx context.Context, grantType, clientID, clientSecret, scope string) (domain.Token, error) {
	l := slogx.FromContext(ctx)

	if grantType != domain.GrantClientCredentials {
		return domain.Token{}, ErrUnsupportedGrant
	}

	client, ok := s.Credentials.Lookup(clientID)
	if !ok {
		// Burn the same argon2 work as a real check so unknown clients are
		// not detectable by timing.
		_ = cryptox.VerifyClientSecret(clientSecret, s.decoyHash)
		l.Info("token request for unknown client", slog.String("client_id", clientID))
		return domain.Token{}, ErrInvalidCredentials
	}

	if err := cryptox.VerifyClientSecret(clientSecret, client.SecretHash); err != nil {
		l.Info("client authentication failed", slog.String("client_id", clientID))
		return domain.Token{}, ErrInvalidCredentials
	}

	if !client.HasScope(scope) {
		l.Info("scope not allowed",
			slog.String("client_id", clientID),
			slog.String("scope", scope),
		)
		return domain.Token{}, ErrScopeNotAllowed
	}

	v, err, _ := s.mint.Do(clientID+"\x00"+scope, func() (any, error) {
		return s.issueForPair(ctx, clientID, scope)
	})
	if err != nil {
		return domain.Token{}, err
	}
	return v.(domain.Token), nil
}

// issueForPair runs under the singleflight lock for one (client, scope) pair.
func (s *TokenService) issueForPair(ctx context.Context, clientID, scope string) (domain.Token, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	if t, ok := s.Tokens.Active(clientID, scope, now); ok && s.reusable(t, now) {
		return t, nil
	}

	// Cache miss or near expiry: consult the durable layer before minting.
	// Another instance (or a previous run) may hold a token worth reusing.
	var existing domain.Token
	err := s.retry(ctx, func(opCtx context.Context) error {
		var err error
		existing, err = s.Store.Tokens().GetActiveToken(opCtx, clientID, scope)
		return err
	})
	switch {
	case err == nil:
		if !existing.Expired(now) && s.reusable(existing, now) {
			s.Tokens.Put(existing)
			return existing, nil
		}
	case errors.Is(err, store.ErrNotFound):
		// fall through to mint
	default:
		return domain.Token{}, storageErr(err)
	}

	minted := domain.Token{
		Value:     uuid.NewString(),
		ClientID:  clientID,
		Scope:     scope,
		ExpiresAt: now.Add(s.TokenTTL),
		CreatedAt: now,
	}

	// Delete-then-insert in one transaction keeps the pair at exactly one
	// live row even when the previous token has not yet expired.
	err = s.retry(ctx, func(opCtx context.Context) error {
		return s.Store.WithTx(opCtx, func(tx store.Tx) error {
			if err := tx.Tokens().DeleteTokensForClientScope(opCtx, clientID, scope); err != nil {
				return err
			}
			return tx.Tokens().CreateToken(opCtx, minted)
		})
	})
	if err != nil {
		return domain.Token{}, storageErr(err)
	}

	s.Tokens.Put(minted)
	l.Info("token minted",
		slog.String("client_id", clientID),
		slog.String("scope", scope),
		slog.Time("expires_at", minted.ExpiresAt),
	)
	return minted, nil
}

// reusable reports whether more than half the token's lifetime remains.
func (s *TokenService) reusable(t domain.Token, now time.Time) bool {
	return t.Remaining(now) > s.TokenTTL/2
}

// retry runs op with a per-attempt timeout and exponential backoff. Not-found
// is permanent, and so is anything once the parent context has ended; a
// per-attempt timeout is exactly the transient class the backoff is for.
func (s *TokenService) retry(ctx context.Context, op func(ctx context.Context) error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), storeMaxRetries),
		ctx,
	)

	return backoff.Retry(func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
		defer cancel()

		err := op(opCtx)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
