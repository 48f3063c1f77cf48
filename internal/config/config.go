// Package config loads server settings from LINKBIO_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. LINKBIO_PORT.
const Prefix = "LINKBIO"

// Config holds the full runtime configuration.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	DBPath   string `envconfig:"DB_PATH" default:"data/linkbio.db"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Sessions. Auth is disabled when JWTSecret is empty.
	JWTSecret    string        `envconfig:"JWT_SECRET"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	CookieSecure bool          `envconfig:"COOKIE_SECURE" default:"false"`

	GitHubClientID     string `envconfig:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `envconfig:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `envconfig:"GITHUB_CALLBACK_URL"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `envconfig:"GOOGLE_CALLBACK_URL"`

	// Projection cache. An empty RedisAddr selects the in-process cache.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	ProjectionTTL time.Duration `envconfig:"PROJECTION_TTL" default:"5s"`

	ClickWorkers   int `envconfig:"CLICK_WORKERS" default:"4"`
	ClickQueueSize int `envconfig:"CLICK_QUEUE_SIZE" default:"1024"`

	ImportTimeout      time.Duration `envconfig:"IMPORT_TIMEOUT" default:"10s"`
	ImportMockFallback bool          `envconfig:"IMPORT_MOCK_FALLBACK" default:"true"`
}

// Load reads the environment, fills derived defaults and validates the
// result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolve() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive")
	}
	if c.ProjectionTTL < 0 {
		return fmt.Errorf("config: PROJECTION_TTL must not be negative")
	}
	if c.ClickWorkers < 1 {
		c.ClickWorkers = 1
	}
	if c.ClickQueueSize < 1 {
		c.ClickQueueSize = 1
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.GitHubCallbackURL == "" {
		c.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Port)
	}
	if c.GoogleCallbackURL == "" {
		c.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", c.Port)
	}
	return nil
}

// AuthEnabled reports whether sessions can be issued.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.AuthEnabled() && c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.AuthEnabled() && c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown log level %q", s)
}
