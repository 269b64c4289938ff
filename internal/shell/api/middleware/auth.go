// Package middleware provides HTTP middleware for the instancedeck web app and API.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/artpar/instancedeck/internal/core/auth"
	"github.com/artpar/instancedeck/internal/core/domain"
	"github.com/artpar/instancedeck/internal/shell/store"
)

// =============================================================================
// Session Resolver Interface
// =============================================================================

// SessionResolver looks up sessions by token hash.
// The store implements this interface.
type SessionResolver interface {
	GetSession(ctx context.Context, tokenHash string) (*domain.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
}

// =============================================================================
// Session Configuration
// =============================================================================

// DefaultSessionCookie is the cookie holding the session token.
const DefaultSessionCookie = "instancedeck_session"

// SessionConfig holds configuration for the session middleware.
type SessionConfig struct {
	// CookieName is the session cookie name. Defaults to DefaultSessionCookie.
	CookieName string

	// Resolver resolves cookie tokens to sessions.
	Resolver SessionResolver

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger for session middleware logging.
	Logger *slog.Logger
}

// =============================================================================
// Session Middleware
// =============================================================================

// SessionMiddleware resolves the session cookie into an auth.Context
// and stores it in the request context.
type SessionMiddleware struct {
	config SessionConfig
}

// NewSessionMiddleware creates a new session middleware with the given config.
func NewSessionMiddleware(cfg SessionConfig) *SessionMiddleware {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookie
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SessionMiddleware{config: cfg}
}

// Handler returns the middleware handler function.
// Requests without a usable session continue unauthenticated; expired
// sessions are deleted on sight.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := m.resolve(r)
		r = r.WithContext(auth.WithContext(r.Context(), authCtx))
		next.ServeHTTP(w, r)
	})
}

func (m *SessionMiddleware) resolve(r *http.Request) auth.Context {
	cookie, err := r.Cookie(m.config.CookieName)
	if err != nil || cookie.Value == "" {
		return auth.Context{}
	}

	hash := auth.HashSessionToken(cookie.Value)
	session, err := m.config.Resolver.GetSession(r.Context(), hash)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.config.Logger.Error("failed to resolve session", "path", r.URL.Path, "error", err)
		}
		return auth.Context{}
	}

	if session.IsExpired(m.config.Now()) {
		if err := m.config.Resolver.DeleteSession(r.Context(), hash); err != nil && !errors.Is(err, store.ErrNotFound) {
			m.config.Logger.Warn("failed to delete expired session", "error", err)
		}
		return auth.Context{}
	}

	return auth.NewContext(session.UserID, session.Username, hash)
}

// =============================================================================
// Require Auth Middleware
// =============================================================================

// RequireAuth rejects unauthenticated requests with a 401 JSON error.
// Use this for API endpoints. Must be used AFTER SessionMiddleware.
func RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireAuthFunc(logger, func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
	})
}

// RequireAuthFunc rejects unauthenticated requests by calling deny.
// Web pages use it to redirect to the login form.
func RequireAuthFunc(logger *slog.Logger, deny http.HandlerFunc) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.FromContext(r.Context())

			if allowed, reason := auth.RequireAuthentication(ctx); !allowed {
				logger.Warn("unauthenticated request to protected endpoint",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
					"reason", reason,
				)
				deny(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// JSON Error Response
// =============================================================================

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:  title,
		Code:   http.StatusText(status),
		Detail: detail,
	})
}
