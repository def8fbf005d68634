package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/midgardlabs/tokend/internal/tokend/cache"
	"github.com/midgardlabs/tokend/internal/tokend/domain"
	"github.com/midgardlabs/tokend/internal/tokend/store"
	"github.com/midgardlabs/tokend/internal/tokend/store/drivers/sqlite"
)

func TestSweeperRemovesExpiredTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	require.NoError(t, st.Clients().CreateClient(ctx, domain.Client{
		ID:         "acme",
		SecretHash: "hash",
		Scopes:     []string{"read", "write"},
	}))

	now := time.Now().UTC()
	live := domain.Token{Value: uuid.NewString(), ClientID: "acme", Scope: "read", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	dead := domain.Token{Value: uuid.NewString(), ClientID: "acme", Scope: "write", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-2 * time.Hour)}
	require.NoError(t, st.Tokens().CreateToken(ctx, live))
	require.NoError(t, st.Tokens().CreateToken(ctx, dead))

	tokens := cache.NewTokenCache()
	tokens.Put(live)
	tokens.Put(dead)

	sweeper := NewSweeperService(st, tokens, testLogger(), time.Hour)
	sweeper.sweep()

	// The expired token is gone from both layers, the live one untouched.
	_, err = st.Tokens().GetTokenByValue(ctx, dead.Value)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, ok := tokens.Lookup(dead.Value)
	require.False(t, ok)

	_, err = st.Tokens().GetTokenByValue(ctx, live.Value)
	require.NoError(t, err)
	_, ok = tokens.Lookup(live.Value)
	require.True(t, ok)
}

// deadlineRecordingTokens notes whether the sweep's store call carried a
// deadline.
type deadlineRecordingTokens struct {
	store.Tokens
	hadDeadline bool
}

func (d *deadlineRecordingTokens) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	_, d.hadDeadline = ctx.Deadline()
	return d.Tokens.DeleteExpiredTokens(ctx, now)
}

func TestSweepBoundsStoreCalls(t *testing.T) {
	t.Parallel()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	recording := &deadlineRecordingTokens{Tokens: st.Tokens()}
	sweeper := NewSweeperService(&hookedStore{Store: st, tokens: recording}, cache.NewTokenCache(), testLogger(), time.Hour)
	require.Equal(t, DefaultQueryTimeout, sweeper.Timeout)

	sweeper.sweep()
	require.True(t, recording.hadDeadline)
}

func TestSweeperStartStop(t *testing.T) {
	t.Parallel()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sweeper := NewSweeperService(st, cache.NewTokenCache(), testLogger(), time.Hour)
	sweeper.Start()
	sweeper.Stop()
}
