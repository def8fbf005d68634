package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/midgardlabs/tokend/internal/tokend/domain"
	"github.com/midgardlabs/tokend/internal/tokend/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedClient(t *testing.T, st *Store, id string, scopes ...string) {
	t.Helper()
	require.NoError(t, st.Clients().CreateClient(context.Background(), domain.Client{
		ID:         id,
		SecretHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		Scopes:     scopes,
	}))
}

func TestClientsRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	empty, err := st.Clients().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	seedClient(t, st, "acme", "read", "write")

	got, err := st.Clients().GetClientByID(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, "acme", got.ID)
	require.Equal(t, []string{"read", "write"}, got.Scopes)
	require.False(t, got.CreatedAt.IsZero())

	_, err = st.Clients().GetClientByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestClientsUpsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	c := domain.Client{ID: "acme", SecretHash: "hash-1", Scopes: []string{"read"}}
	require.NoError(t, st.Clients().UpsertClient(ctx, c))

	c.SecretHash = "hash-2"
	c.Scopes = []string{"read", "write"}
	require.NoError(t, st.Clients().UpsertClient(ctx, c))

	got, err := st.Clients().GetClientByID(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, "hash-2", got.SecretHash)
	require.Equal(t, []string{"read", "write"}, got.Scopes)

	clients, err := st.Clients().ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
}

func TestTokensRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	seedClient(t, st, "acme", "read")

	now := time.Now().UTC().Truncate(time.Second)
	tok := domain.Token{
		Value:     "tok-1",
		ClientID:  "acme",
		Scope:     "read",
		ExpiresAt: now.Add(2 * time.Hour),
		CreatedAt: now,
	}
	require.NoError(t, st.Tokens().CreateToken(ctx, tok))

	got, err := st.Tokens().GetTokenByValue(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, "acme", got.ClientID)
	require.Equal(t, "read", got.Scope)
	require.True(t, got.ExpiresAt.Equal(tok.ExpiresAt))

	active, err := st.Tokens().GetActiveToken(ctx, "acme", "read")
	require.NoError(t, err)
	require.Equal(t, "tok-1", active.Value)

	_, err = st.Tokens().GetTokenByValue(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Tokens().GetActiveToken(ctx, "acme", "write")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTokensPairUniqueness(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	seedClient(t, st, "acme", "read")

	now := time.Now().UTC()
	first := domain.Token{Value: "tok-1", ClientID: "acme", Scope: "read", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, st.Tokens().CreateToken(ctx, first))

	// A second live row for the same pair violates the schema.
	second := domain.Token{Value: "tok-2", ClientID: "acme", Scope: "read", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.Error(t, st.Tokens().CreateToken(ctx, second))

	// Delete-then-insert inside a transaction is how rotation stays legal.
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tokens().DeleteTokensForClientScope(ctx, "acme", "read"); err != nil {
			return err
		}
		return tx.Tokens().CreateToken(ctx, second)
	})
	require.NoError(t, err)

	active, err := st.Tokens().GetActiveToken(ctx, "acme", "read")
	require.NoError(t, err)
	require.Equal(t, "tok-2", active.Value)

	_, err = st.Tokens().GetTokenByValue(ctx, "tok-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	seedClient(t, st, "acme", "read")

	now := time.Now().UTC()
	tok := domain.Token{Value: "tok-1", ClientID: "acme", Scope: "read", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, st.Tokens().CreateToken(ctx, tok))

	boom := context.DeadlineExceeded
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tokens().DeleteTokensForClientScope(ctx, "acme", "read"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The delete inside the failed transaction must not be visible.
	got, err := st.Tokens().GetTokenByValue(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, "tok-1", got.Value)
}

func TestDeleteExpiredTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	seedClient(t, st, "acme", "read", "write")

	now := time.Now().UTC()
	live := domain.Token{Value: "live", ClientID: "acme", Scope: "read", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	dead := domain.Token{Value: "dead", ClientID: "acme", Scope: "write", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-2 * time.Hour)}
	require.NoError(t, st.Tokens().CreateToken(ctx, live))
	require.NoError(t, st.Tokens().CreateToken(ctx, dead))

	deleted, err := st.Tokens().DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	_, err = st.Tokens().GetTokenByValue(ctx, "dead")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Tokens().GetTokenByValue(ctx, "live")
	require.NoError(t, err)
}

func TestDeleteClientCascadesToTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	seedClient(t, st, "acme", "read")

	now := time.Now().UTC()
	tok := domain.Token{Value: "tok-1", ClientID: "acme", Scope: "read", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, st.Tokens().CreateToken(ctx, tok))

	require.NoError(t, st.Clients().DeleteClient(ctx, "acme"))

	_, err := st.Tokens().GetTokenByValue(ctx, "tok-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}
