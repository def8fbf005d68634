package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/midgardlabs/tokend/internal/tokend/cache"
	httpapi "github.com/midgardlabs/tokend/internal/tokend/http"
	"github.com/midgardlabs/tokend/internal/tokend/service"
	"github.com/midgardlabs/tokend/internal/tokend/store"
	"github.com/midgardlabs/tokend/internal/tokend/store/drivers/sqlite"
	"github.com/midgardlabs/tokend/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the token service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db          store.Store
	credentials *cache.CredentialCache
	tokens      *cache.TokenCache

	// Services
	tokenService   *service.TokenService
	clientService  *service.ClientService
	sweeperService *service.SweeperService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
// Startup is fail-fast: a database, migration, seed, or credential preload
// failure aborts before the server ever binds its port.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tokend",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		credentials: cache.NewCredentialCache(),
		tokens:      cache.NewTokenCache(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	ctx := context.Background()

	if cfg.SeedFile != "" {
		if _, err := app.clientService.SeedFromFile(ctx, cfg.SeedFile); err != nil {
			_ = app.db.Close()
			return nil, fmt.Errorf("failed to apply seed file: %w", err)
		}
	}

	// The credential cache is the only place client checks are served from,
	// so the service refuses to start without it.
	if err := app.clientService.LoadCredentials(ctx, app.credentials); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to preload credentials: %w", err)
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.sweeperService.Start()

	app.logger.Info("token service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down token service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the sweeper
	app.sweeperService.Stop()

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("token service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	tokenService, err := service.NewTokenService(app.credentials, app.tokens, app.db, app.cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	tokenService.QueryTimeout = app.cfg.QueryTimeout
	app.tokenService = tokenService

	app.clientService = &service.ClientService{
		Store:  app.db,
		Logger: app.logger,
	}

	app.sweeperService = service.NewSweeperService(
		app.db,
		app.tokens,
		app.logger,
		app.cfg.SweepInterval,
	)
	app.sweeperService.Timeout = app.cfg.QueryTimeout

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.credentials,
		app.logger,
	)

	// Wire services to router
	router.TokenService = app.tokenService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
