// Package cache holds the in-memory read layers that front the durable
// store: a credential cache preloaded at startup and a token cache kept in
// lockstep with issuance and validation.
package cache

import (
	"sync"

	"github.com/midgardlabs/tokend/internal/tokend/domain"
)

// CredentialCache is a read-through snapshot of the registered clients. It is
// bulk-loaded from the store at startup and serves every credential check
// without touching the database afterwards.
type CredentialCache struct {
	mu      sync.RWMutex
	clients map[string]domain.Client
	loaded  bool
}

func NewCredentialCache() *CredentialCache {
	return &CredentialCache{
		clients: make(map[string]domain.Client),
	}
}

// Load replaces the cached snapshot with the given clients.
func (c *CredentialCache) Load(clients []domain.Client) {
	next := make(map[string]domain.Client, len(clients))
	for _, cl := range clients {
		next[cl.ID] = cl
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = next
	c.loaded = true
}

// Lookup returns the client with the given id, if registered.
func (c *CredentialCache) Lookup(id string) (domain.Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cl, ok := c.clients[id]
	return cl, ok
}

// Loaded reports whether the startup bulk load has completed. Readiness
// checks gate on this.
func (c *CredentialCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Len returns the number of cached clients.
func (c *CredentialCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}
