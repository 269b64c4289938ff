// Package api provides the HTTP handlers for the instancedeck web pages
// and JSON API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/instancedeck/internal/core/instance"
	"github.com/artpar/instancedeck/internal/shell/api/middleware"
	"github.com/artpar/instancedeck/internal/shell/api/openapi"
	"github.com/artpar/instancedeck/internal/shell/store"
)

// =============================================================================
// Dependencies
// =============================================================================

// InstanceService is the instance façade used by the handlers.
type InstanceService interface {
	Describe(ctx context.Context, ids []string) []instance.Summary
	Start(ctx context.Context, id string, dryRun bool) instance.ActionResult
	Stop(ctx context.Context, id string, dryRun bool) instance.ActionResult
	Region() string
}

// Config holds handler settings.
type Config struct {
	// SessionCookie is the session cookie name.
	SessionCookie string

	// SessionTTL is how long a login session lasts.
	SessionTTL time.Duration

	// SecureCookies marks cookies Secure (HTTPS only).
	SecureCookies bool

	// Secret seals flash cookies.
	Secret string

	// AllowLive permits non-dry-run start and stop requests. When false
	// every request is sent as a dry run.
	AllowLive bool

	// Version is reported by /health and the OpenAPI document.
	Version string
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the web pages and the API.
type Handler struct {
	store     store.Store
	instances InstanceService
	flash     *Flasher
	sessions  *middleware.SessionMiddleware
	openapi   *openapi.Generator
	pages     *pages
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates a new HTTP handler.
func NewHandler(s store.Store, instances InstanceService, cfg Config, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = middleware.DefaultSessionCookie
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	l = l.With("component", "http")

	h := &Handler{
		store:     s,
		instances: instances,
		flash:     NewFlasher(cfg.Secret, cfg.SecureCookies, l),
		sessions: middleware.NewSessionMiddleware(middleware.SessionConfig{
			CookieName: cfg.SessionCookie,
			Resolver:   s,
			Logger:     l,
		}),
		pages:  mustParsePages(),
		cfg:    cfg,
		logger: l,
		now:    time.Now,
	}
	h.openapi = newAPIDocument(cfg)
	return h
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(h.sessions.Handler)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	r.Handle("/static/*", http.StripPrefix("/static/", StaticHandler()))

	// Web pages
	r.Get("/", h.handleIndex)
	r.Get("/register", h.handleRegisterForm)
	r.Post("/register", h.handleRegister)
	r.Get("/login", h.handleLoginForm)
	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuthFunc(h.logger, h.redirectToLogin))
		r.Get("/instances", h.handleInstancesPage)
		r.Post("/instances/{id}/start", h.handleStartForm)
		r.Post("/instances/{id}/stop", h.handleStopForm)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentType)
		r.Get("/openapi.json", h.openapi.Handler())

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.logger))
			r.Get("/instances", h.handleListInstances)
			r.Post("/instances/{id}/start", h.handleStartInstance)
			r.Post("/instances/{id}/stop", h.handleStopInstance)
		})
	})

	return r
}

// jsonContentType sets Content-Type header to application/json.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: h.cfg.Version})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	checks := make(map[string]string)

	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "check", "database", "error", err)
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Helpers
// =============================================================================

// resolveDryRun applies the live-action policy to a requested flag.
// A nil request means dry-run.
func (h *Handler) resolveDryRun(requested *bool) bool {
	if !h.cfg.AllowLive || requested == nil {
		return true
	}
	return *requested
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// isNotFound checks if an error is a not found error.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
