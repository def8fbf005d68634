package cache

import (
	"sync"
	"time"

	"github.com/midgardlabs/tokend/internal/tokend/domain"
)

type pairKey struct {
	clientID string
	scope    string
}

// TokenCache indexes live tokens two ways: by opaque value for validation and
// by (client, scope) pair for reuse checks during issuance. Both indexes are
// kept consistent under one lock; the pair index never points at a value
// missing from the value index.
type TokenCache struct {
	mu      sync.RWMutex
	byValue map[string]domain.Token
	byPair  map[pairKey]string // pair -> token value
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		byValue: make(map[string]domain.Token),
		byPair:  make(map[pairKey]string),
	}
}

// Lookup returns the cached token with the given value. Expiry is the
// caller's concern; expired entries are evicted via Evict.
func (c *TokenCache) Lookup(value string) (domain.Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.byValue[value]
	return t, ok
}

// Active returns the live token for a (client, scope) pair at the given
// instant. An expired entry is evicted from both indexes and reported as
// absent.
func (c *TokenCache) Active(clientID, scope string, now time.Time) (domain.Token, bool) {
	key := pairKey{clientID: clientID, scope: scope}

	c.mu.RLock()
	value, ok := c.byPair[key]
	if !ok {
		c.mu.RUnlock()
		return domain.Token{}, false
	}
	t, ok := c.byValue[value]
	c.mu.RUnlock()
	if !ok {
		return domain.Token{}, false
	}

	if t.Expired(now) {
		c.Evict(t.Value)
		return domain.Token{}, false
	}
	return t, true
}

// Put caches a token, replacing any previous token for the same (client,
// scope) pair so the pair never maps to two live values.
func (c *TokenCache) Put(t domain.Token) {
	key := pairKey{clientID: t.ClientID, scope: t.Scope}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.byPair[key]; ok && prev != t.Value {
		delete(c.byValue, prev)
	}
	c.byValue[t.Value] = t
	c.byPair[key] = t.Value
}

// Evict removes a token from both indexes. Removing an absent value is a
// no-op.
func (c *TokenCache) Evict(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.byValue[value]
	if !ok {
		return
	}
	delete(c.byValue, value)

	key := pairKey{clientID: t.ClientID, scope: t.Scope}
	if c.byPair[key] == value {
		delete(c.byPair, key)
	}
}

// EvictExpired drops every entry past the given instant and returns how many
// were removed. Called by the housekeeping sweeper.
func (c *TokenCache) EvictExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for value, t := range c.byValue {
		if !t.Expired(now) {
			continue
		}
		delete(c.byValue, value)

		key := pairKey{clientID: t.ClientID, scope: t.Scope}
		if c.byPair[key] == value {
			delete(c.byPair, key)
		}
		evicted++
	}
	return evicted
}

// Len returns the number of cached tokens.
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byValue)
}
