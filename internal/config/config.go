package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	APIURL         string        `env:"WASHDESK_API_URL" envDefault:"http://localhost:5000"`
	Store          string        `env:"WASHDESK_STORE" envDefault:"sqlite://washdesk.db"`
	RequestTimeout time.Duration `env:"WASHDESK_REQUEST_TIMEOUT" envDefault:"10s"`
	Listen         string        `env:"WASHDESK_LISTEN" envDefault:"localhost:8080"`
	ScreenTTL      time.Duration `env:"WASHDESK_SCREEN_TTL" envDefault:"30m"`
	LogLevel       string        `env:"WASHDESK_LOG_LEVEL" envDefault:"info"`
}

// Load reads the environment after applying whichever of envFiles exist.
// Variables already set in the environment win over the files.
func Load(envFiles ...string) (*Config, error) {
	existing := make([]string, 0, len(envFiles))
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return nil, fmt.Errorf("load env files: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api url %q must be an absolute http(s) url", c.APIURL)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.ScreenTTL <= 0 {
		return errors.New("screen ttl must be positive")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
