package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/midgardlabs/tokend/internal/tokend/domain"
	"github.com/midgardlabs/tokend/internal/tokend/store"
	"github.com/midgardlabs/tokend/pkg/slogx"
)

// Validate resolves a presented bearer value to the token it identifies.
// The cache is consulted first; a miss falls back to the store and warms the
// cache on success. Expired tokens are evicted on read rather than waiting
// for the sweeper.
func (s *TokenService) Validate(ctx context.Context, value string) (domain.Token, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	if t, ok := s.Tokens.Lookup(value); ok {
		if t.Expired(now) {
			// Expiry is decidable from the cached timestamp alone. The row
			// is left for the sweeper so a degraded store cannot stall this
			// path.
			s.Tokens.Evict(t.Value)
			return domain.Token{}, ErrTokenExpired
		}
		return t, nil
	}

	var t domain.Token
	err := s.retry(ctx, func(opCtx context.Context) error {
		var err error
		t, err = s.Store.Tokens().GetTokenByValue(opCtx, value)
		return err
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.Token{}, ErrTokenNotFound
	case err != nil:
		return domain.Token{}, storageErr(err)
	}

	if t.Expired(now) {
		s.bestEffortDelete(ctx, t)
		return domain.Token{}, ErrTokenExpired
	}

	s.Tokens.Put(t)
	l.Debug("token validated from store", slog.String("client_id", t.ClientID))
	return t, nil
}

// bestEffortDelete removes an expired row the store fallback just surfaced.
// One attempt only; a failure is logged and the sweeper catches the row
// later.
func (s *TokenService) bestEffortDelete(ctx context.Context, t domain.Token) {
	opCtx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	if err := s.Store.Tokens().DeleteTokenByValue(opCtx, t.Value); err != nil {
		slogx.FromContext(ctx).Warn("failed to delete expired token",
			slog.String("client_id", t.ClientID),
			slog.Any("error", err),
		)
	}
}
