package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the server configuration, read from the environment.
type Config struct {
	Addr        string `env:"SECRETPAGE_ADDR" envDefault:":3000"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:secrets.db"`

	SessionLifetime        time.Duration `env:"SESSION_LIFETIME" envDefault:"24h"`
	SessionIdleTimeout     time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"0s"`
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"5m"`
	CookieSecure           bool          `env:"COOKIE_SECURE" envDefault:"false"`

	Google GoogleConfig

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// GoogleConfig holds the Google OAuth client registration.
type GoogleConfig struct {
	ClientID        string        `env:"GOOGLE_CLIENT_ID"`
	ClientSecret    string        `env:"GOOGLE_CLIENT_SECRET"`
	CallbackURL     string        `env:"GOOGLE_CALLBACK_URL" envDefault:"http://127.0.0.1:3000/auth/google/secrets"`
	StateSecret     string        `env:"OAUTH_STATE_SECRET"`
	ExchangeTimeout time.Duration `env:"OAUTH_EXCHANGE_TIMEOUT" envDefault:"10s"`
}

// Enabled reports whether a Google client is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Load reads .env files (missing files are ignored) and then parses the
// environment. Variables already set in the environment win over .env.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if (c.Google.ClientID == "") != (c.Google.ClientSecret == "") {
		return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}
	if c.Google.Enabled() && c.Google.CallbackURL == "" {
		return errors.New("GOOGLE_CALLBACK_URL is required when Google sign in is enabled")
	}
	if c.SessionLifetime <= 0 {
		return errors.New("SESSION_LIFETIME must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return level, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return level, nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	level, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
