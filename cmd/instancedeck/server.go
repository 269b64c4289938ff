package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/instancedeck/internal/core/auth"
	"github.com/artpar/instancedeck/internal/shell/api"
	"github.com/artpar/instancedeck/internal/shell/instances"
	"github.com/artpar/instancedeck/internal/shell/provider"
	"github.com/artpar/instancedeck/internal/shell/store"
	"github.com/artpar/instancedeck/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitProviderError   = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the instancedeck application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	sweeper    *workers.SessionSweeper
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	secret := cfg.Session.Secret
	if secret == "" {
		secret, err = auth.NewSessionToken()
		if err != nil {
			s.Close()
			return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitConfigError}
		}
		logger.Warn("session.secret not set, using a random secret for this process")
	}

	svc := newInstanceService(cfg, logger)

	if !cfg.Actions.AllowLive {
		logger.Info("live actions disabled, start and stop run as dry runs")
	}

	handler := api.NewHandler(s, svc, api.Config{
		SessionCookie: cfg.Session.CookieName,
		SessionTTL:    cfg.Session.TTL,
		SecureCookies: cfg.Session.Secure,
		Secret:        secret,
		AllowLive:     cfg.Actions.AllowLive,
		Version:       Version,
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sweeper := workers.NewSessionSweeper(s, workers.SessionSweeperConfig{
		Interval: cfg.Session.SweepInterval,
	}, logger)

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		sweeper:    sweeper,
		logger:     logger,
	}, nil
}

// openStore connects to the configured database and applies migrations.
func openStore(cfg *Config) (*store.SQLStore, error) {
	s, err := store.Open(store.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return nil, &ServerError{Op: "openStore", Err: err, ExitCode: ExitDatabaseError}
	}
	return s, nil
}

// newInstanceService builds the EC2 instance façade for the configured region.
func newInstanceService(cfg *Config, logger *slog.Logger, opts ...instances.Option) *instances.Service {
	factory := provider.NewAWSClientFactory(provider.AWSConfig{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		SessionToken:    cfg.AWS.SessionToken,
		Endpoint:        cfg.AWS.Endpoint,
	}, logger)

	logger.Info("aws provider configured",
		"region", factory.DefaultRegion(),
		"static_credentials", factory.HasStaticCredentials(),
		"endpoint", cfg.AWS.Endpoint,
	)

	return instances.NewService(factory, logger, opts...)
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	s.sweeper.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.sweeper.Stop()
		s.store.Close()
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.sweeper.Stop()

	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
