// Package config handles TOML configuration loading and validation for the sdispatch server.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/sdispatch/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='SDISPATCH_CONFIG'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	H2C      bool   `kong:"name='h2c',help='Serve cleartext HTTP/2 alongside HTTP/1.1.'"`
}

// Config is the top-level server configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	CORS      CORSConfig      `toml:"cors"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Auth      AuthConfig      `toml:"auth"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Debug     bool            `toml:"debug"` // expose error details in responses

	filePath string // resolved config file path, empty when running on defaults
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host                   string `toml:"host"`
	Port                   int    `toml:"port"` // 0 means "use default" (8080)
	BodyMaxBytes           int64  `toml:"body_max_bytes"`
	RequestTimeoutSeconds  int    `toml:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
	H2C                    bool   `toml:"h2c"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json or console
}

// CORSConfig mirrors middleware.CORSConfig.
type CORSConfig struct {
	Enabled          bool     `toml:"enabled"`
	Origins          []string `toml:"origins"`
	Methods          []string `toml:"methods"`
	Headers          []string `toml:"headers"`
	ExposedHeaders   []string `toml:"exposed_headers"`
	AllowCredentials bool     `toml:"allow_credentials"`
	MaxAgeSeconds    int      `toml:"max_age_seconds"`
}

// RateLimitConfig controls per-client request rate limiting.
type RateLimitConfig struct {
	Enabled       bool   `toml:"enabled"`
	Limit         int    `toml:"limit"`
	WindowSeconds int    `toml:"window_seconds"`
	Limiter       string `toml:"limiter"` // token_bucket or pacing
}

// AuthConfig lists the API keys accepted by routes that require authentication.
type AuthConfig struct {
	APIKeys []string `toml:"api_keys"`
	Header  string   `toml:"header"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Path      string `toml:"path"`
	Namespace string `toml:"namespace"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or SDISPATCH_CONFIG), it searches
// /etc/sdispatch/config.toml then configs/config.toml, and falls back to defaults when
// neither exists.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// Parse decodes TOML data into cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.H2C {
		c.Server.H2C = true
	}
}

// validate checks every field and reports all problems at once.
func (c *Config) validate() error {
	var errs error

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("server.port must be 0-65535; got %d", c.Server.Port))
	}
	if c.Server.BodyMaxBytes < 0 {
		errs = multierr.Append(errs, fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes))
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		errs = multierr.Append(errs, fmt.Errorf("server.request_timeout_seconds must be non-negative; got %d", c.Server.RequestTimeoutSeconds))
	}
	if c.Server.ShutdownTimeoutSeconds < 0 {
		errs = multierr.Append(errs, fmt.Errorf("server.shutdown_timeout_seconds must be non-negative; got %d", c.Server.ShutdownTimeoutSeconds))
	}
	if c.CORS.MaxAgeSeconds < 0 {
		errs = multierr.Append(errs, fmt.Errorf("cors.max_age_seconds must be non-negative; got %d", c.CORS.MaxAgeSeconds))
	}
	if c.CORS.Enabled && len(c.CORS.Origins) == 0 {
		errs = multierr.Append(errs, errors.New("cors.origins must not be empty when CORS is enabled"))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Limit <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("rate_limit.limit must be > 0 when rate limiting is enabled; got %d", c.RateLimit.Limit))
		}
		if c.RateLimit.WindowSeconds < 0 {
			errs = multierr.Append(errs, fmt.Errorf("rate_limit.window_seconds must be non-negative; got %d", c.RateLimit.WindowSeconds))
		}
	}
	switch strings.ToLower(c.RateLimit.Limiter) {
	case "token_bucket", "pacing", "":
	default:
		errs = multierr.Append(errs, fmt.Errorf("rate_limit.limiter must be one of: token_bucket, pacing; got %q", c.RateLimit.Limiter))
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		errs = multierr.Append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "":
	default:
		errs = multierr.Append(errs, fmt.Errorf("log.format must be one of: json, console; got %q", c.Log.Format))
	}

	// Metrics path must not shadow a demo route.
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			errs = multierr.Append(errs, fmt.Errorf("metrics.path must start with '/'; got %q", p))
		}
		for _, reserved := range []string{"/healthz", "/echo", "/users"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				errs = multierr.Append(errs, fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved))
			}
		}
	}

	return errs
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields zero means "unset" because TOML cannot distinguish between an explicit 0
// and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1 << 20 // 1 MB
	}
	if c.Server.RequestTimeoutSeconds == 0 {
		c.Server.RequestTimeoutSeconds = 30
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 1
	}
	if c.RateLimit.Limiter == "" {
		c.RateLimit.Limiter = "token_bucket"
	}
	if c.Auth.Header == "" {
		c.Auth.Header = "X-API-Key"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "sdispatch"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FilePath returns the config file the configuration was loaded from, if any.
func (c *Config) FilePath() string {
	return c.filePath
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RequestTimeout returns the per-request deadline.
func (c *ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns how long in-flight requests may take to drain.
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Window returns the rate limit window.
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}
