package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/artpar/instancedeck/internal/core/domain"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// timeFormat is fixed width in UTC so stored timestamps compare as strings.
const timeFormat = time.RFC3339

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// =============================================================================
// SQLStore
// =============================================================================

// SQLStore implements Store on top of sqlx. Queries are written with ?
// placeholders and rebound for the active driver.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.Open(DriverSQLite, dsn+sep+"_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// A single connection keeps :memory: databases coherent and avoids
	// SQLITE_BUSY between concurrent writers.
	db.SetMaxOpenConns(1)

	return newSQLStore(db, DriverSQLite, "NewSQLiteStore")
}

// NewPostgresStore creates a new PostgreSQL store (pgx driver) and runs migrations.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, NewStoreError("NewPostgresStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	return newSQLStore(db, DriverPostgres, "NewPostgresStore")
}

func newSQLStore(db *sqlx.DB, driver, op string) (*SQLStore, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError(op, "", "", "failed to ping database: "+err.Error(), ErrConnectionFailed)
	}

	if err := runMigrations(db.DB, driver); err != nil {
		db.Close()
		return nil, NewStoreError(op, "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

// runMigrations runs the embedded migrations for the given driver's dialect.
func runMigrations(db *sql.DB, driverName string) error {
	var (
		dir    string
		target database.Driver
		err    error
	)

	switch driverName {
	case DriverSQLite:
		dir = "migrations/sqlite"
		target, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case DriverPostgres:
		dir = "migrations/postgres"
		target, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		return ErrUnsupportedDriver
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driverName, target)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Driver returns the database driver name.
func (s *SQLStore) Driver() string {
	return s.driver
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a unique constraint failure
// from either backend.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// =============================================================================
// User Operations
// =============================================================================

// userRow represents a user row in the database.
type userRow struct {
	ID           int64  `db:"id"`
	ReferenceID  string `db:"reference_id"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

const userColumns = `id, reference_id, username, email, password_hash, created_at, updated_at`

// CreateUser inserts user and sets its ID.
func (s *SQLStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := s.db.Rebind(`
		INSERT INTO users (reference_id, username, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := s.db.GetContext(ctx, &id, query,
		user.ReferenceID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt.UTC().Format(timeFormat),
		user.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return NewStoreError("CreateUser", "user", user.Email, "email already registered", ErrDuplicateEmail)
		}
		return NewStoreError("CreateUser", "user", user.Email, err.Error(), err)
	}

	user.ID = id
	return nil
}

// GetUserByID returns the user with id.
func (s *SQLStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return s.getUser(ctx, "GetUserByID", strconv.FormatInt(id, 10), query, id)
}

// GetUserByEmail returns the user registered with email. The lookup uses
// the normalized address.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	return s.getUser(ctx, "GetUserByEmail", email, query, email)
}

func (s *SQLStore) getUser(ctx context.Context, op, key, query string, arg any) (*domain.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError(op, "user", key, "user not found", ErrNotFound)
		}
		return nil, NewStoreError(op, "user", key, err.Error(), err)
	}
	return rowToUser(&row)
}

func rowToUser(row *userRow) (*domain.User, error) {
	createdAt, err := time.Parse(timeFormat, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToUser", "user", row.ReferenceID, "invalid created_at", ErrInvalidData)
	}
	updatedAt, err := time.Parse(timeFormat, row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("rowToUser", "user", row.ReferenceID, "invalid updated_at", ErrInvalidData)
	}

	return &domain.User{
		ID:           row.ID,
		ReferenceID:  row.ReferenceID,
		Username:     row.Username,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// =============================================================================
// Session Operations
// =============================================================================

// sessionRow represents a session row joined with its user.
type sessionRow struct {
	TokenHash string `db:"token_hash"`
	UserID    int64  `db:"user_id"`
	Username  string `db:"username"`
	CreatedAt string `db:"created_at"`
	ExpiresAt string `db:"expires_at"`
}

// CreateSession inserts session.
func (s *SQLStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := s.db.Rebind(`
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		session.TokenHash,
		session.UserID,
		session.CreatedAt.UTC().Format(timeFormat),
		session.ExpiresAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return NewStoreError("CreateSession", "session", "", "session already exists", ErrDuplicateSession)
		}
		return NewStoreError("CreateSession", "session", "", err.Error(), err)
	}
	return nil
}

// GetSession returns the session for tokenHash, including the username.
// Expired sessions are returned as stored; callers check IsExpired.
func (s *SQLStore) GetSession(ctx context.Context, tokenHash string) (*domain.Session, error) {
	query := s.db.Rebind(`
		SELECT s.token_hash, s.user_id, u.username, s.created_at, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = ?`)

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetSession", "session", "", "session not found", ErrNotFound)
		}
		return nil, NewStoreError("GetSession", "session", "", err.Error(), err)
	}

	createdAt, err := time.Parse(timeFormat, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("GetSession", "session", "", "invalid created_at", ErrInvalidData)
	}
	expiresAt, err := time.Parse(timeFormat, row.ExpiresAt)
	if err != nil {
		return nil, NewStoreError("GetSession", "session", "", "invalid expires_at", ErrInvalidData)
	}

	return &domain.Session{
		TokenHash: row.TokenHash,
		UserID:    row.UserID,
		Username:  row.Username,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// DeleteSession removes the session for tokenHash.
func (s *SQLStore) DeleteSession(ctx context.Context, tokenHash string) error {
	query := s.db.Rebind(`DELETE FROM sessions WHERE token_hash = ?`)

	result, err := s.db.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return NewStoreError("DeleteSession", "session", "", err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteSession", "session", "", "session not found", ErrNotFound)
	}
	return nil
}

// DeleteExpiredSessions removes every session that expired at or before now
// and returns how many were removed.
func (s *SQLStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	query := s.db.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`)

	result, err := s.db.ExecContext(ctx, query, now.UTC().Format(timeFormat))
	if err != nil {
		return 0, NewStoreError("DeleteExpiredSessions", "session", "", err.Error(), err)
	}

	n, _ := result.RowsAffected()
	return n, nil
}
