// Package config handles loading and validating back office configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/sportscouncil/backoffice/internal/secrets"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for the back office.
type Config struct {
	DataDir       string               `json:"data_dir,omitempty" yaml:"data_dir,omitempty"` // Persistent data directory. Default: ~/.backoffice/data. Override: BACKOFFICE_DATA_DIR env var.
	Storage       *StorageConfig       `json:"storage,omitempty" yaml:"storage,omitempty"`   // nil = SQLite default (derived from data dir)
	HTTP          HTTPConfig           `json:"http" yaml:"http"`
	Encryption    EncryptionConfig     `json:"encryption" yaml:"encryption"`
	Integrations  IntegrationsConfig   `json:"integrations" yaml:"integrations"`
	Probe         *ProbeConfig         `json:"probe,omitempty" yaml:"probe,omitempty"`                 // nil = periodic checks disabled
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
	Logging       LoggingConfig        `json:"logging" yaml:"logging"`
}

// StorageConfig configures the storage backend.
type StorageConfig struct {
	Driver   string                 `json:"driver" yaml:"driver"`                         // "sqlite" (default) or "postgres".
	SQLite   *SQLiteStorageConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`     // SQLite-specific settings.
	Postgres *PostgresStorageConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"` // PostgreSQL-specific settings.
}

// StorageDriver returns the configured driver, defaulting to "sqlite".
func (s *StorageConfig) StorageDriver() string {
	if s != nil && s.Driver != "" {
		return s.Driver
	}
	return "sqlite"
}

// SQLiteStorageConfig holds SQLite-specific settings.
type SQLiteStorageConfig struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"` // Database file path. Default: <data_dir>/backoffice.db.
	JournalMode string `json:"journal_mode" yaml:"journal_mode"`     // "wal" (default), "delete", "truncate", etc.
}

// PostgresStorageConfig holds PostgreSQL-specific settings.
// DSN can be overridden by BACKOFFICE_DB_DSN env var.
type PostgresStorageConfig struct {
	DSN              string `json:"dsn" yaml:"dsn"`
	MaxOpenConns     int    `json:"max_open_conns" yaml:"max_open_conns"`           // Default: 25
	MaxIdleConns     int    `json:"max_idle_conns" yaml:"max_idle_conns"`           // Default: 5
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"` // Default: 1800 (30 min)
}

// HTTPConfig configures the admin API server.
type HTTPConfig struct {
	ListenAddr          string            `json:"listen_addr" yaml:"listen_addr"` // Default: ":8080"
	EnableDocs          bool              `json:"enable_docs" yaml:"enable_docs"`
	MaxRequestSizeBytes int64             `json:"max_request_size_bytes" yaml:"max_request_size_bytes"` // Upload limit. Default: 25 MiB
	APIKeys             map[string]string `json:"api_keys" yaml:"api_keys"`                             // API key → user ID. Merged with BACKOFFICE_API_KEYS.
	Contact             ContactConfig     `json:"contact" yaml:"contact"`
}

// ContactConfig configures the public contact form.
type ContactConfig struct {
	Enabled   bool            `json:"enabled" yaml:"enabled"`
	Recipient string          `json:"recipient" yaml:"recipient"` // Council inbox. Default: ADMIN_EMAIL env var.
	Template  string          `json:"template" yaml:"template"`   // Stored template name. Default: "contact"
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// TemplateName returns the stored template used for contact messages.
func (c ContactConfig) TemplateName() string {
	if c.Template != "" {
		return c.Template
	}
	return "contact"
}

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"` // Default: 5
	BurstSize         int `json:"burst_size" yaml:"burst_size"`                   // Default: 3
}

// Limits returns the effective requests per minute and burst size.
func (r RateLimitConfig) Limits() (rpm, burst int) {
	rpm, burst = r.RequestsPerMinute, r.BurstSize
	if rpm == 0 {
		rpm = 5
	}
	if burst == 0 {
		burst = 3
	}
	return rpm, burst
}

// EncryptionConfig holds the master key used for secret settings.
// ENCRYPTION_KEY, then JWT_SECRET, override the configured value.
type EncryptionConfig struct {
	MasterKey string `json:"master_key,omitempty" yaml:"master_key,omitempty"`
}

// IntegrationsConfig tunes the credentialed integrations.
type IntegrationsConfig struct {
	CacheTTLSeconds         int    `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`                   // Credential cache lifetime. Default: 60
	OperationTimeoutSeconds int    `json:"operation_timeout_seconds" yaml:"operation_timeout_seconds"`   // Per vendor call. Default: 30
	SignedURLMinutes        int    `json:"signed_url_minutes" yaml:"signed_url_minutes"`                 // Default signed URL lifetime. Default: 60
	GmailRedirectURL        string `json:"gmail_redirect_url,omitempty" yaml:"gmail_redirect_url,omitempty"` // OAuth callback. Override: GMAIL_REDIRECT_URL env var.
}

// CacheTTL returns the credential cache lifetime.
func (i IntegrationsConfig) CacheTTL() time.Duration {
	if i.CacheTTLSeconds > 0 {
		return time.Duration(i.CacheTTLSeconds) * time.Second
	}
	return 60 * time.Second
}

// OperationTimeout returns the timeout applied to each integration operation.
func (i IntegrationsConfig) OperationTimeout() time.Duration {
	if i.OperationTimeoutSeconds > 0 {
		return time.Duration(i.OperationTimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// SignedURLDefault returns the default signed URL lifetime in minutes.
func (i IntegrationsConfig) SignedURLDefault() int {
	if i.SignedURLMinutes > 0 {
		return i.SignedURLMinutes
	}
	return 60
}

// ProbeConfig configures periodic integration checks.
type ProbeConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Schedule string `json:"schedule" yaml:"schedule"` // Cron expression. Default: "*/5 * * * *"
}

// CronSchedule returns the probe schedule.
func (p *ProbeConfig) CronSchedule() string {
	if p != nil && p.Schedule != "" {
		return p.Schedule
	}
	return "*/5 * * * *"
}

// ObservabilityConfig configures metrics, tracing, health checks, and anomaly detection.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Health  *HealthConfig  `json:"health,omitempty" yaml:"health,omitempty"`
	Anomaly *AnomalyConfig `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "backoffice"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
	Environment string  `json:"environment,omitempty" yaml:"environment,omitempty"`

	// Headers are sent with every export, e.g. a collector API key.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// HealthConfig configures dependency health checks for readiness probes.
type HealthConfig struct {
	IncludeDB           bool `json:"include_db" yaml:"include_db"`
	IncludeIntegrations bool `json:"include_integrations" yaml:"include_integrations"` // Report integration checks (never fails readiness).
}

// AnomalyConfig configures threshold-based anomaly detection.
type AnomalyConfig struct {
	Enabled            bool    `json:"enabled" yaml:"enabled"`
	ErrorRateThreshold float64 `json:"error_rate_threshold" yaml:"error_rate_threshold"` // e.g. 0.5 = 50% errors
	WindowSeconds      int     `json:"window_seconds" yaml:"window_seconds"`             // Sliding window. Default: 300
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info (default), warn, error. Override: BACKOFFICE_LOG_LEVEL.
}

// SlogLevel returns the configured level as a slog.Level.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/backoffice.yaml" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".backoffice", "config.yaml")
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything else for JSON.
// A missing file is not an error: defaults and environment variables are used instead.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		// Expand ~ in config path.
		resolved, err := resolvePath(path)
		if err != nil {
			return nil, fmt.Errorf("resolving config path %s: %w", path, err)
		}
		data, err := os.ReadFile(resolved)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults + env
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", resolved, err)
		default:
			switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
			case ".yml", ".yaml":
				if err := yaml.Unmarshal(data, &cfg); err != nil {
					return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
				}
			default:
				if err := json.Unmarshal(data, &cfg); err != nil {
					return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
				}
			}
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("BACKOFFICE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := getenv("BACKOFFICE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("BACKOFFICE_LISTEN_ADDR"); v != "" {
		c.HTTP.ListenAddr = v
	}

	// Postgres DSN override switches the driver to postgres.
	if v := getenv("BACKOFFICE_DB_DSN"); v != "" {
		if c.Storage == nil {
			c.Storage = &StorageConfig{}
		}
		if c.Storage.Postgres == nil {
			c.Storage.Postgres = &PostgresStorageConfig{}
		}
		c.Storage.Driver = "postgres"
		c.Storage.Postgres.DSN = v
	}

	// API keys: "key1:user1,key2:user2".
	if v := getenv("BACKOFFICE_API_KEYS"); v != "" {
		if c.HTTP.APIKeys == nil {
			c.HTTP.APIKeys = make(map[string]string)
		}
		for _, entry := range strings.Split(v, ",") {
			parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
			if len(parts) == 2 && parts[0] != "" {
				c.HTTP.APIKeys[parts[0]] = parts[1]
			}
		}
	}

	lookup := func(name string) (string, bool) {
		v := getenv(name)
		return v, v != ""
	}
	if key, err := secrets.MasterKey(lookup); err == nil {
		c.Encryption.MasterKey = key
	}

	if v := getenv("GMAIL_REDIRECT_URL"); v != "" {
		c.Integrations.GmailRedirectURL = v
	}
	if c.HTTP.Contact.Recipient == "" {
		c.HTTP.Contact.Recipient = getenv("ADMIN_EMAIL")
	}
}

func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	if c.HTTP.ListenAddr != "" {
		return c.HTTP.ListenAddr
	}
	return ":8080"
}

// MaxRequestSize returns the request body limit in bytes.
func (c *Config) MaxRequestSize() int64 {
	if c.HTTP.MaxRequestSizeBytes > 0 {
		return c.HTTP.MaxRequestSizeBytes
	}
	return 25 << 20
}

// ResolvedDataDir returns the data directory, resolving ~ if needed.
func (c *Config) ResolvedDataDir() string {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		return filepath.Join(home, ".backoffice", "data")
	}
	resolved, err := resolvePath(c.DataDir)
	if err != nil {
		return c.DataDir
	}
	return resolved
}

// DatabasePath returns the SQLite database path.
func (c *Config) DatabasePath() string {
	if c.Storage != nil && c.Storage.SQLite != nil && c.Storage.SQLite.Path != "" {
		if p, err := resolvePath(c.Storage.SQLite.Path); err == nil {
			return p
		}
		return c.Storage.SQLite.Path
	}
	return filepath.Join(c.ResolvedDataDir(), "backoffice.db")
}

// StorageDriverName returns the effective storage driver name.
func (c *Config) StorageDriverName() string {
	if c.Storage != nil {
		return c.Storage.StorageDriver()
	}
	return "sqlite"
}

// MetricsPath returns the metrics endpoint path, or "" when metrics are disabled.
func (c *Config) MetricsPath() string {
	if c.Observability == nil || c.Observability.Metrics == nil || !c.Observability.Metrics.Enabled {
		return ""
	}
	if c.Observability.Metrics.Path != "" {
		return c.Observability.Metrics.Path
	}
	return "/metrics"
}

func (c *Config) validate() error {
	// Storage driver validation.
	if c.Storage != nil && c.Storage.Driver != "" {
		switch c.Storage.Driver {
		case "sqlite":
		case "postgres":
			if c.Storage.Postgres == nil || c.Storage.Postgres.DSN == "" {
				return fmt.Errorf("storage.postgres.dsn is required (set BACKOFFICE_DB_DSN env var)")
			}
		default:
			return fmt.Errorf("storage.driver %q is not supported (use sqlite or postgres)", c.Storage.Driver)
		}
	}
	if c.HTTP.MaxRequestSizeBytes < 0 {
		return fmt.Errorf("http.max_request_size_bytes must not be negative")
	}
	if c.HTTP.Contact.RateLimit.RequestsPerMinute < 0 || c.HTTP.Contact.RateLimit.BurstSize < 0 {
		return fmt.Errorf("http.contact.rate_limit values must not be negative")
	}
	if c.Integrations.CacheTTLSeconds < 0 {
		return fmt.Errorf("integrations.cache_ttl_seconds must not be negative")
	}
	if c.Integrations.OperationTimeoutSeconds < 0 {
		return fmt.Errorf("integrations.operation_timeout_seconds must not be negative")
	}
	if c.Integrations.SignedURLMinutes < 0 {
		return fmt.Errorf("integrations.signed_url_minutes must not be negative")
	}
	if c.Probe != nil && c.Probe.Enabled {
		if _, err := cron.ParseStandard(c.Probe.CronSchedule()); err != nil {
			return fmt.Errorf("probe.schedule %q: %w", c.Probe.Schedule, err)
		}
	}
	if o := c.Observability; o != nil && o.Tracing != nil && o.Tracing.Enabled {
		if o.Tracing.Endpoint == "" {
			return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
		}
		switch o.Tracing.Protocol {
		case "", "grpc", "http":
		default:
			return fmt.Errorf("observability.tracing.protocol %q is not supported (use grpc or http)", o.Tracing.Protocol)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}
