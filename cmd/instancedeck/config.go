package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/artpar/instancedeck/internal/core/provider"
	"github.com/artpar/instancedeck/internal/shell/store"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	AWS      AWSConfig      `mapstructure:"aws"`
	Session  SessionConfig  `mapstructure:"session"`
	Actions  ActionsConfig  `mapstructure:"actions"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	// Driver is "sqlite3" (default) or "pgx".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AWSConfig holds EC2 client configuration.
// Empty keys mean the SDK default credential chain.
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	Endpoint        string `mapstructure:"endpoint"`
}

// Credentials returns the configured static credentials.
func (c AWSConfig) Credentials() provider.AWSCredentials {
	return provider.AWSCredentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
	}
}

// SessionConfig holds login session and cookie configuration.
type SessionConfig struct {
	CookieName    string        `mapstructure:"cookie_name"`
	TTL           time.Duration `mapstructure:"ttl"`
	Secure        bool          `mapstructure:"secure"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// Secret seals flash cookies. When empty a random secret is generated
	// at startup, so flashes do not survive a restart.
	// Set via INSTANCEDECK_SESSION_SECRET.
	Secret string `mapstructure:"secret"`
}

// ActionsConfig controls start and stop behaviour.
type ActionsConfig struct {
	// AllowLive permits non-dry-run start/stop. When false every request
	// is sent to the provider as a dry run.
	AllowLive bool `mapstructure:"allow_live"`
}

// MinSecretLength is the minimum length of session.secret when set.
const MinSecretLength = 32

// =============================================================================
// Config Loading
// =============================================================================

// LoadEnvFile loads variables from a dotenv file without overriding the
// existing environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", "./data/instancedeck.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.session_token", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("session.cookie_name", "instancedeck_session")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.sweep_interval", "10m")
	v.SetDefault("session.secret", "")
	v.SetDefault("actions.allow_live", false) // every action is a dry run unless enabled

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only a malformed file is fatal; a missing one falls back to defaults.
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("INSTANCEDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The standard AWS variables are honoured alongside the prefixed ones.
	_ = v.BindEnv("aws.region", "INSTANCEDECK_AWS_REGION", "AWS_REGION")
	_ = v.BindEnv("aws.access_key_id", "INSTANCEDECK_AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("aws.secret_access_key", "INSTANCEDECK_AWS_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv("aws.session_token", "INSTANCEDECK_AWS_SESSION_TOKEN", "AWS_SESSION_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the loaded configuration for values that would only
// fail later at request time.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("database.driver %q: %w", c.Database.Driver, store.ErrUnsupportedDriver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.AWS.Region != "" {
		if err := provider.ValidateRegion(c.AWS.Region); err != nil {
			return fmt.Errorf("aws.region: %w", err)
		}
	}
	if err := provider.ValidateAWSCredentials(c.AWS.Credentials()); err != nil {
		return fmt.Errorf("aws: %w", err)
	}
	if c.Session.Secret != "" && len(c.Session.Secret) < MinSecretLength {
		return fmt.Errorf("session.secret must be at least %d bytes", MinSecretLength)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
