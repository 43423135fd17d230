// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Supported storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Import    ImportConfig
	Sequence  SequenceConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envDefault:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, imports can be long)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	// Driver selects the store: postgres or sqlite (default: postgres)
	Driver string `env:"DB_DRIVER" envDefault:"postgres"`

	// URL is the PostgreSQL connection string (required for postgres).
	// DB_URL is accepted as a fallback.
	URL string `env:"DATABASE_URL"`

	// SQLitePath is the database file used by the sqlite driver (default: inventory.db)
	SQLitePath string `env:"SQLITE_PATH" envDefault:"inventory.db"`

	// AutoMigrate applies pending PostgreSQL migrations on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" envDefault:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" envDefault:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
}

// ImportConfig holds bulk import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum accepted upload in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" envDefault:"104857600"`

	// MaxConcurrent is the maximum number of parallel imports (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" envDefault:"5"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" envDefault:"30s"`

	// Timeout bounds a single import run (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" envDefault:"10m"`

	// Delimiter is the default field separator: a single character or "tab" (default: ,)
	Delimiter string `env:"IMPORT_DELIMITER" envDefault:","`

	// DedupeBatch skips repeated natural keys within one file (default: false)
	DedupeBatch bool `env:"IMPORT_DEDUPE_BATCH" envDefault:"false"`

	// ProgressInterval is the number of rows between progress reports (default: 100)
	ProgressInterval int `env:"IMPORT_PROGRESS_INTERVAL" envDefault:"100"`
}

// SequenceConfig holds code allocation settings.
type SequenceConfig struct {
	// MaxAttempts is how many inserts a single create tries when its
	// allocated code is taken concurrently (default: 2)
	MaxAttempts int `env:"SEQUENCE_MAX_ATTEMPTS" envDefault:"2"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" envDefault:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS" envSeparator:","`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For headers are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// TelemetryConfig holds OpenTelemetry tracing settings.
type TelemetryConfig struct {
	// Enabled turns on trace export (default: false)
	Enabled bool `env:"OTEL_ENABLED" envDefault:"false"`

	// Endpoint is the OTLP/HTTP collector host:port (default: localhost:4318)
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`

	// Insecure disables TLS to the collector (default: true)
	Insecure bool `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`

	// ServiceName identifies this process in traces (default: inventory)
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"inventory"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
