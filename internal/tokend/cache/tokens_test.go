package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/midgardlabs/tokend/internal/tokend/domain"
	"github.com/stretchr/testify/require"
)

func testToken(value, clientID, scope string, expiresAt time.Time) domain.Token {
	return domain.Token{
		Value:     value,
		ClientID:  clientID,
		Scope:     scope,
		ExpiresAt: expiresAt,
		CreatedAt: expiresAt.Add(-2 * time.Hour),
	}
}

func TestTokenCachePutAndLookup(t *testing.T) {
	t.Parallel()

	c := NewTokenCache()
	now := time.Now().UTC()

	tok := testToken("tok-1", "acme", "read", now.Add(time.Hour))
	c.Put(tok)

	got, ok := c.Lookup("tok-1")
	require.True(t, ok)
	require.Equal(t, tok, got)

	_, ok = c.Lookup("missing")
	require.False(t, ok)
}

func TestTokenCachePutReplacesPair(t *testing.T) {
	t.Parallel()

	c := NewTokenCache()
	now := time.Now().UTC()

	old := testToken("tok-old", "acme", "read", now.Add(time.Hour))
	c.Put(old)

	replacement := testToken("tok-new", "acme", "read", now.Add(2*time.Hour))
	c.Put(replacement)

	// The superseded value must be gone from the value index too, otherwise
	// a retired token would still validate.
	_, ok := c.Lookup("tok-old")
	require.False(t, ok)

	active, ok := c.Active("acme", "read", now)
	require.True(t, ok)
	require.Equal(t, "tok-new", active.Value)
	require.Equal(t, 1, c.Len())
}

func TestTokenCachePairsAreIndependent(t *testing.T) {
	t.Parallel()

	c := NewTokenCache()
	now := time.Now().UTC()

	c.Put(testToken("tok-read", "acme", "read", now.Add(time.Hour)))
	c.Put(testToken("tok-write", "acme", "write", now.Add(time.Hour)))
	c.Put(testToken("tok-other", "globex", "read", now.Add(time.Hour)))

	require.Equal(t, 3, c.Len())

	active, ok := c.Active("acme", "write", now)
	require.True(t, ok)
	require.Equal(t, "tok-write", active.Value)
}

func TestTokenCacheActiveEvictsExpired(t *testing.T) {
	t.Parallel()

	c := NewTokenCache()
	now := time.Now().UTC()

	c.Put(testToken("tok-dead", "acme", "read", now.Add(-time.Minute)))

	_, ok := c.Active("acme", "read", now)
	require.False(t, ok)

	// The expired entry was dropped from both indexes.
	_, ok = c.Lookup("tok-dead")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestTokenCacheEvict(t *testing.T) {
	t.Parallel()

	c := NewTokenCache()
	now := time.Now().UTC()

	c.Put(testToken("tok-1", "acme", "read", now.Add(time.Hour)))
	c.Evict("tok-1")

	_, ok := c.Lookup("tok-1")
	require.False(t, ok)
	_, ok = c.Active("acme", "read", now)
	require.False(t, ok)

	// Evicting an absent value is a no-op.
	c.Evict("tok-1")
}

func TestTokenCacheEvictExpired(t *testing.T) {
	t.Parallel()

	c := NewTokenCache()
	now := time.Now().UTC()

	c.Put(testToken("live", "acme", "read", now.Add(time.Hour)))
	c.Put(testToken("dead-1", "acme", "write", now.Add(-time.Minute)))
	c.Put(testToken("dead-2", "globex", "read", now.Add(-time.Hour)))

	require.Equal(t, 2, c.EvictExpired(now))
	require.Equal(t, 1, c.Len())

	_, ok := c.Lookup("live")
	require.True(t, ok)
}

func TestTokenCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewTokenCache()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			scope := fmt.Sprintf("scope-%d", n%4)
			tok := testToken(fmt.Sprintf("tok-%d", n), "acme", scope, now.Add(time.Hour))
			c.Put(tok)
			c.Lookup(tok.Value)
			c.Active("acme", scope, now)
		}(i)
	}
	wg.Wait()

	// One live value per scope survives and both indexes agree on it.
	for i := 0; i < 4; i++ {
		scope := fmt.Sprintf("scope-%d", i)
		active, ok := c.Active("acme", scope, now)
		require.True(t, ok)

		got, ok := c.Lookup(active.Value)
		require.True(t, ok)
		require.Equal(t, active, got)
	}
	require.Equal(t, 4, c.Len())
}
