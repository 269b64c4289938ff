// Package auth provides the request authentication context, password hashing
// and session token helpers.
package auth

import (
	"context"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Types
// =============================================================================

// Context represents the authenticated user for a request.
// It is resolved from the session cookie by middleware and stored in the request context.
type Context struct {
	// UserID is the integer PK from the users table.
	UserID int64

	// Username is the display name stored with the session.
	Username string

	// SessionHash identifies the session row (SHA-256 of the cookie token).
	SessionHash string

	// Authenticated indicates whether the request carries a valid session.
	Authenticated bool
}

// NewContext builds an authenticated context for a session.
func NewContext(userID int64, username, sessionHash string) Context {
	return Context{
		UserID:        userID,
		Username:      username,
		SessionHash:   sessionHash,
		Authenticated: userID > 0,
	}
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the auth context in the request context.
func WithContext(ctx context.Context, authCtx Context) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext retrieves the auth context from the request context.
// If no auth context is found, returns an unauthenticated context.
func FromContext(ctx context.Context) Context {
	if authCtx, ok := ctx.Value(authContextKey).(Context); ok {
		return authCtx
	}
	return Context{Authenticated: false}
}
