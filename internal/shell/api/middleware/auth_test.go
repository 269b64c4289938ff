package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/instancedeck/internal/core/auth"
	"github.com/artpar/instancedeck/internal/core/domain"
	"github.com/artpar/instancedeck/internal/shell/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type stubResolver struct {
	sessions map[string]*domain.Session
	err      error
	deleted  []string
}

func newStubResolver() *stubResolver {
	return &stubResolver{sessions: map[string]*domain.Session{}}
}

func (s *stubResolver) add(token string, userID int64, username string, expiresAt time.Time) {
	hash := auth.HashSessionToken(token)
	s.sessions[hash] = &domain.Session{
		TokenHash: hash,
		UserID:    userID,
		Username:  username,
		CreatedAt: expiresAt.Add(-time.Hour),
		ExpiresAt: expiresAt,
	}
}

func (s *stubResolver) GetSession(_ context.Context, tokenHash string) (*domain.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, store.NewStoreError("GetSession", "session", "", "session not found", store.ErrNotFound)
	}
	return sess, nil
}

func (s *stubResolver) DeleteSession(_ context.Context, tokenHash string) error {
	s.deleted = append(s.deleted, tokenHash)
	delete(s.sessions, tokenHash)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testHandler echoes the auth context from the request.
func testHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"authenticated": ctx.Authenticated,
			"user_id":       ctx.UserID,
			"username":      ctx.Username,
		})
	})
}

func serveWithCookie(t *testing.T, h http.Handler, token string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/instances", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func newTestMiddleware(resolver SessionResolver) *SessionMiddleware {
	return NewSessionMiddleware(SessionConfig{
		Resolver: resolver,
		Now:      func() time.Time { return testNow },
		Logger:   discardLogger(),
	})
}

// =============================================================================
// SessionMiddleware Tests
// =============================================================================

func TestSessionMiddleware_ValidSession(t *testing.T) {
	resolver := newStubResolver()
	resolver.add("tok-1", 7, "alice", testNow.Add(time.Hour))

	resp := serveWithCookie(t, newTestMiddleware(resolver).Handler(testHandler()), "tok-1")

	assert.Equal(t, true, resp["authenticated"])
	assert.Equal(t, float64(7), resp["user_id"])
	assert.Equal(t, "alice", resp["username"])
}

func TestSessionMiddleware_NoCookie(t *testing.T) {
	resp := serveWithCookie(t, newTestMiddleware(newStubResolver()).Handler(testHandler()), "")
	assert.Equal(t, false, resp["authenticated"])
}

func TestSessionMiddleware_UnknownToken(t *testing.T) {
	resp := serveWithCookie(t, newTestMiddleware(newStubResolver()).Handler(testHandler()), "forged")
	assert.Equal(t, false, resp["authenticated"])
}

func TestSessionMiddleware_ExpiredSessionDeleted(t *testing.T) {
	resolver := newStubResolver()
	resolver.add("old", 7, "alice", testNow)

	resp := serveWithCookie(t, newTestMiddleware(resolver).Handler(testHandler()), "old")

	assert.Equal(t, false, resp["authenticated"])
	assert.Equal(t, []string{auth.HashSessionToken("old")}, resolver.deleted)
}

func TestSessionMiddleware_ResolverError(t *testing.T) {
	resolver := newStubResolver()
	resolver.err = errors.New("database is locked")

	resp := serveWithCookie(t, newTestMiddleware(resolver).Handler(testHandler()), "tok")
	assert.Equal(t, false, resp["authenticated"])
}

func TestSessionMiddleware_CustomCookieName(t *testing.T) {
	resolver := newStubResolver()
	resolver.add("tok", 1, "bob", testNow.Add(time.Hour))
	mw := NewSessionMiddleware(SessionConfig{
		CookieName: "sid",
		Resolver:   resolver,
		Now:        func() time.Time { return testNow },
		Logger:     discardLogger(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "tok"})
	rec := httptest.NewRecorder()
	mw.Handler(testHandler()).ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), `"authenticated":true`)
}

// =============================================================================
// RequireAuth Tests
// =============================================================================

func TestRequireAuth_Unauthenticated(t *testing.T) {
	handler := RequireAuth(discardLogger())(testHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/instances", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Unauthorized", resp.Error)
	assert.Equal(t, "Authentication required", resp.Detail)
}

func TestRequireAuth_Authenticated(t *testing.T) {
	handler := RequireAuth(discardLogger())(testHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/instances", nil)
	req = req.WithContext(auth.WithContext(req.Context(), auth.NewContext(3, "carol", "h")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthFunc_CustomDeny(t *testing.T) {
	deny := func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
	handler := RequireAuthFunc(discardLogger(), deny)(testHandler())

	req := httptest.NewRequest(http.MethodGet, "/instances", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

// =============================================================================
// Request ID / Logging Tests
// =============================================================================

func TestRequestID_Generated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = chimw.GetReqID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRequestID_Propagated(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	handler := RequestLogger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
