package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
)

// writeConfig writes data to a config.toml in a temp dir and returns its path.
func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
debug = true

[server]
host = "127.0.0.1"
port = 9000
body_max_bytes = 2048
shutdown_timeout_seconds = 3

[log]
level = "debug"
format = "console"

[cors]
enabled = true
origins = ["https://example.com"]
max_age_seconds = 600

[rate_limit]
enabled = true
limit = 5
window_seconds = 60
limiter = "pacing"

[auth]
api_keys = ["k1", "k2"]

[metrics]
enabled = true
path = "/internal/metrics"
`)

	cfg, err := Load(&CLI{Config: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("Server.Addr() = %q, want %q", cfg.Server.Addr(), "127.0.0.1:9000")
	}
	if cfg.Server.BodyMaxBytes != 2048 {
		t.Errorf("Server.BodyMaxBytes = %d, want 2048", cfg.Server.BodyMaxBytes)
	}
	if cfg.Server.ShutdownTimeout() != 3*time.Second {
		t.Errorf("Server.ShutdownTimeout() = %v, want 3s", cfg.Server.ShutdownTimeout())
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v, want debug/console", cfg.Log)
	}
	if !cfg.CORS.Enabled || cfg.CORS.Origins[0] != "https://example.com" {
		t.Errorf("CORS = %+v", cfg.CORS)
	}
	if cfg.RateLimit.Window() != time.Minute || cfg.RateLimit.Limiter != "pacing" {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if len(cfg.Auth.APIKeys) != 2 || cfg.Auth.Header != "X-API-Key" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
	if cfg.Metrics.Path != "/internal/metrics" || cfg.Metrics.Namespace != "sdispatch" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
	if cfg.FilePath() != path {
		t.Errorf("FilePath() = %q, want %q", cfg.FilePath(), path)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(&CLI{Config: writeConfig(t, "")})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Errorf("Server = %+v, want 0.0.0.0:8080", cfg.Server)
	}
	if cfg.Server.BodyMaxBytes != 1<<20 {
		t.Errorf("Server.BodyMaxBytes = %d, want %d", cfg.Server.BodyMaxBytes, 1<<20)
	}
	if cfg.Server.RequestTimeout() != 30*time.Second {
		t.Errorf("Server.RequestTimeout() = %v, want 30s", cfg.Server.RequestTimeout())
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want info/json", cfg.Log)
	}
	if cfg.RateLimit.Limiter != "token_bucket" || cfg.RateLimit.WindowSeconds != 1 {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9000

[log]
level = "info"
`)

	cfg, err := Load(&CLI{Config: path, Host: "localhost", Port: 7000, LogLevel: "warn", H2C: true})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr() != "localhost:7000" {
		t.Errorf("Server.Addr() = %q, want localhost:7000", cfg.Server.Addr())
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if !cfg.Server.H2C {
		t.Error("Server.H2C = false, want true")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"port", "[server]\nport = 70000", "server.port"},
		{"body", "[server]\nbody_max_bytes = -1", "server.body_max_bytes"},
		{"log level", "[log]\nlevel = \"verbose\"", "log.level"},
		{"log format", "[log]\nformat = \"xml\"", "log.format"},
		{"rate limit", "[rate_limit]\nenabled = true", "rate_limit.limit"},
		{"limiter", "[rate_limit]\nlimiter = \"leaky\"", "rate_limit.limiter"},
		{"cors", "[cors]\nenabled = true", "cors.origins"},
		{"metrics path", "[metrics]\nenabled = true\npath = \"metrics\"", "metrics.path"},
		{"metrics conflict", "[metrics]\nenabled = true\npath = \"/users/metrics\"", "conflicts"},
		{"unknown key", "[server]\nhots = \"x\"", "parse"},
		{"syntax", "[server\n", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(&CLI{Config: writeConfig(t, tt.data)})
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_ReportsAllProblems(t *testing.T) {
	path := writeConfig(t, `
[server]
port = -1

[log]
level = "loud"
`)

	_, err := Load(&CLI{Config: path})
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
	var cause error
	for e := err; e != nil; {
		cause = e
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if got := len(multierr.Errors(cause)); got != 2 {
		t.Errorf("Expected 2 validation errors, got %d: %v", got, err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(&CLI{Config: filepath.Join(t.TempDir(), "missing.toml")})
	if err == nil || !strings.Contains(err.Error(), "read") {
		t.Errorf("Load() error = %v, want read error", err)
	}
}

func TestFindConfigInPaths(t *testing.T) {
	existing := writeConfig(t, "")
	missing := filepath.Join(t.TempDir(), "nope.toml")

	if got := findConfigInPaths([]string{missing, existing}); got != existing {
		t.Errorf("findConfigInPaths() = %q, want %q", got, existing)
	}
	if got := findConfigInPaths([]string{missing}); got != "" {
		t.Errorf("findConfigInPaths() = %q, want empty", got)
	}
}
