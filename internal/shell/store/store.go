package store

import (
	"context"
	"time"

	"github.com/artpar/instancedeck/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for users and sessions.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// Session operations. Sessions are keyed by the hash of the cookie token.
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, tokenHash string) (*domain.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Config selects the database backend.
type Config struct {
	Driver string // sqlite3 or pgx
	DSN    string
}

// Open creates a store for cfg and runs migrations.
func Open(cfg Config) (*SQLStore, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLiteStore(cfg.DSN)
	case DriverPostgres:
		return NewPostgresStore(cfg.DSN)
	default:
		return nil, NewStoreError("Open", "", "", "driver "+cfg.Driver, ErrUnsupportedDriver)
	}
}
