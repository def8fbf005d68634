package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/midgardlabs/tokend/internal/tokend/cache"
	"github.com/midgardlabs/tokend/internal/tokend/store"
)

// SweeperService periodically deletes expired token rows and cache entries.
// Validation already evicts lazily on read, so the sweeper only has to catch
// tokens nobody presents again.
type SweeperService struct {
	Store    store.Store
	Tokens   *cache.TokenCache
	Logger   *slog.Logger
	Interval time.Duration

	// Timeout bounds each store call made during a sweep.
	Timeout time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSweeperService creates a sweeper with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewSweeperService(st store.Store, tokens *cache.TokenCache, logger *slog.Logger, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &SweeperService{
		Store:    st,
		Tokens:   tokens,
		Logger:   logger,
		Interval: interval,
		Timeout:  DefaultQueryTimeout,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs the sweep.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *SweeperService) Start() {
	go s.run()
	s.Logger.Info("sweeper started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress sweep.
func (s *SweeperService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("sweeper stopped")
}

func (s *SweeperService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run a sweep immediately on startup
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep deletes expired rows and cache entries. The two layers are swept
// independently; a store failure does not block the cache sweep.
func (s *SweeperService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	now := time.Now().UTC()

	deleted, err := s.Store.Tokens().DeleteExpiredTokens(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired tokens", "error", err)
	}

	evicted := s.Tokens.EvictExpired(now)

	s.Logger.Info("sweep completed",
		slog.Int64("rows_deleted", deleted),
		slog.Int("cache_evicted", evicted),
	)
}
