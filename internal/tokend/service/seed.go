package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/midgardlabs/tokend/internal/tokend/cache"
	"github.com/midgardlabs/tokend/internal/tokend/domain"
	"github.com/midgardlabs/tokend/internal/tokend/store"
	"github.com/midgardlabs/tokend/pkg/cryptox"
)

// ClientService manages client registration: seeding from a file and
// preloading the credential cache at startup.
type ClientService struct {
	Store  store.Store
	Logger *slog.Logger
}

// seedEntry is one record of the seed file. Secrets arrive in plaintext and
// are hashed before they touch the store.
type seedEntry struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Scope        scopeList `json:"scope"`
}

// scopeList accepts either a JSON array of scopes or a single space-delimited
// string, since seed files in the wild use both.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*s = arr
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("scope must be a string or array of strings")
	}
	*s = domain.DecodeScopes(str)
	return nil
}

// SeedFromFile reads a JSON seed file and upserts every client into the
// store. Each entry's secret is argon2-hashed; existing clients are updated
// in place.
func (s *ClientService) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var entries []seedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	for _, e := range entries {
		if e.ClientID == "" {
			return 0, fmt.Errorf("seed entry missing client_id")
		}

		hash, err := cryptox.HashClientSecret(e.ClientSecret)
		if err != nil {
			return 0, fmt.Errorf("hash secret for %q: %w", e.ClientID, err)
		}

		client := domain.Client{
			ID:         e.ClientID,
			SecretHash: hash,
			Scopes:     e.Scope,
		}
		if err := s.Store.Clients().UpsertClient(ctx, client); err != nil {
			return 0, storageErr(err)
		}
	}

	s.Logger.Info("seed applied", slog.Int("clients", len(entries)), slog.String("file", path))
	return len(entries), nil
}

// LoadCredentials bulk-loads every registered client into the credential
// cache. The service refuses to come up without this snapshot, so a failure
// here is fatal to startup.
func (s *ClientService) LoadCredentials(ctx context.Context, creds *cache.CredentialCache) error {
	clients, err := s.Store.Clients().ListClients(ctx)
	if err != nil {
		return storageErr(err)
	}

	creds.Load(clients)
	s.Logger.Info("credential cache loaded", slog.Int("clients", len(clients)))
	return nil
}
