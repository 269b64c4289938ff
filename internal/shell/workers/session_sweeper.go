// Package workers contains background workers for instancedeck.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionPurger deletes expired sessions. The store implements this interface.
type SessionPurger interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionSweeperConfig configures the session sweeper worker.
type SessionSweeperConfig struct {
	// Interval is the time between sweep cycles.
	// Default: 10 minutes.
	Interval time.Duration

	// Timeout bounds a single sweep.
	// Default: 30 seconds.
	Timeout time.Duration
}

// DefaultSessionSweeperConfig returns the default configuration.
func DefaultSessionSweeperConfig() SessionSweeperConfig {
	return SessionSweeperConfig{
		Interval: 10 * time.Minute,
		Timeout:  30 * time.Second,
	}
}

// SessionSweeper periodically removes expired login sessions.
type SessionSweeper struct {
	store  SessionPurger
	config SessionSweeperConfig
	logger *slog.Logger
	now    func() time.Time

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionSweeper creates a new session sweeper worker.
func NewSessionSweeper(s SessionPurger, config SessionSweeperConfig, logger *slog.Logger) *SessionSweeper {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SessionSweeper{
		store:  s,
		config: config,
		logger: logger.With("component", "session_sweeper"),
		now:    time.Now,
	}
}

// Start begins the sweeper background goroutine.
func (s *SessionSweeper) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go s.run()

	s.logger.Info("session sweeper started", "interval", s.config.Interval)
}

// Stop stops the sweeper and waits for an in-progress sweep to finish.
func (s *SessionSweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("session sweeper stopped")
}

// run is the main loop.
func (s *SessionSweeper) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.Sweep(s.ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.ctx)
		}
	}
}

// Sweep runs one cycle and returns the number of sessions removed.
func (s *SessionSweeper) Sweep(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	n, err := s.store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to delete expired sessions", "error", err)
		return 0
	}
	if n > 0 {
		s.logger.Info("deleted expired sessions", "count", n)
	} else {
		s.logger.Debug("no expired sessions")
	}
	return n
}
