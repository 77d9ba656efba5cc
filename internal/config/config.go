// Package config resolves environment defaults for the sensorsync command.
//
// Values come from the process environment, optionally seeded from a .env
// file. Command-line flags take precedence; the CLI uses Env only to choose
// flag defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds environment-derived defaults.
type Env struct {
	DB       string        `env:"SENSORSYNC_DB" envDefault:"sensorsync.db"`
	LogLevel string        `env:"SENSORSYNC_LOG_LEVEL" envDefault:"info"`
	Format   string        `env:"SENSORSYNC_FORMAT" envDefault:"text"`
	CacheTTL time.Duration `env:"SENSORSYNC_CACHE_TTL" envDefault:"1m"`
}

// LoadDotenv sets environment variables from the given files; with no paths,
// ".env" is used. Variables already set in the environment are not
// overridden. Missing files are ignored.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the optional dotenv files and parses Env.
func Load(paths ...string) (Env, error) {
	var cfg Env
	if err := LoadDotenv(paths...); err != nil {
		return cfg, err
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	switch cfg.Format {
	case "text", "json":
	default:
		return cfg, fmt.Errorf("SENSORSYNC_FORMAT: must be text or json, got %q", cfg.Format)
	}
	if cfg.CacheTTL < 0 {
		return cfg, fmt.Errorf("SENSORSYNC_CACHE_TTL: must not be negative, got %s", cfg.CacheTTL)
	}
	return cfg, nil
}
