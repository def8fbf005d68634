package app

import (
	"context"
	"fmt"

	"github.com/midgardlabs/tokend/internal/tokend/service"
	"github.com/midgardlabs/tokend/internal/tokend/store/drivers/sqlite"
	"github.com/midgardlabs/tokend/pkg/slogx"
)

// Seed applies a client seed file against the configured database without
// starting the server. An empty file argument falls back to the configured
// seed file.
func Seed(ctx context.Context, cfg Config, file string) (int, error) {
	if file == "" {
		file = cfg.SeedFile
	}
	if file == "" {
		return 0, fmt.Errorf("no seed file given (set --file or TOKEND_SEED_FILE)")
	}

	logger := slogx.New(slogx.Config{
		Service: "tokend",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.ApplyMigrations(); err != nil {
		return 0, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	clients := &service.ClientService{Store: db, Logger: logger}
	return clients.SeedFromFile(ctx, file)
}
