// Package config loads process configuration from environment variables,
// applies defaults and validates every setting on startup.
package config

import (
	"strconv"
	"time"
)

// Config holds all process configuration.
type Config struct {
	Server    ServerConfig
	Rules     RulesConfig
	Run       RunConfig
	Output    OutputConfig
	Upload    UploadConfig
	Database  DatabaseConfig
	Retention RetentionConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds the wait for in-flight runs on shutdown.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`
}

// RulesConfig locates the cleaning rules.
type RulesConfig struct {
	// Path is a JSON or YAML rules document. Empty means the built-in rules.
	Path string `env:"RULES_PATH"`
}

// RunConfig tunes the cleaning runs.
type RunConfig struct {
	// Mode is strict or lenient.
	Mode string `env:"RUN_MODE" default:"strict"`

	// FailurePolicy is validate_raw or skip_validation.
	FailurePolicy string `env:"RUN_FAILURE_POLICY" default:"validate_raw"`

	// Workers bounds per-file parallel evaluation; 0 means GOMAXPROCS.
	Workers int `env:"RUN_WORKERS" default:"0"`

	ChunkSize int `env:"RUN_CHUNK_SIZE" default:"1000"`

	// MaxFiles bounds files processed at once by the CLI.
	MaxFiles int `env:"RUN_MAX_FILES" default:"4"`

	// MaxConcurrent bounds runs processed at once by the server.
	MaxConcurrent int `env:"RUN_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long an upload waits for a run slot.
	MaxWait time.Duration `env:"RUN_MAX_WAIT" default:"30s"`

	// Timeout bounds a single run started by the server.
	Timeout time.Duration `env:"RUN_TIMEOUT" default:"10m"`
}

// OutputConfig controls where and how results are written.
type OutputConfig struct {
	Dir         string `env:"OUTPUT_DIR" default:"out"`
	ErrorFormat string `env:"OUTPUT_ERROR_FORMAT" default:"jsonl"`
}

// UploadConfig limits HTTP uploads.
type UploadConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 100MB).
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`
}

// DatabaseConfig holds the optional PostgreSQL settings. Without a URL the
// server keeps runs in memory.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// RetentionConfig controls how long stored runs are kept.
type RetentionConfig struct {
	MaxAge        time.Duration `env:"RETENTION_MAX_AGE" default:"168h"`
	CheckInterval time.Duration `env:"RETENTION_CHECK_INTERVAL" default:"1h"`

	// MemoryRuns caps runs kept in memory when no database is configured.
	MemoryRuns int `env:"RETENTION_MEMORY_RUNS" default:"100"`
}

// SecurityConfig holds request-trust settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs or addresses whose
	// forwarding headers are believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey guards the /api routes with the X-API-Key header.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
