package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                  string
	DBPath                string
	LogLevel              string
	SessionMaxItems       int
	PersistMaxAttempts    int
	PersistInitialBackoff time.Duration
	PersistMaxBackoff     time.Duration
	FlushInterval         time.Duration
	DigestAt              string
	Timezone              string
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:                  envOr("ADDR", ":8080"),
		DBPath:                envOr("DB_PATH", "file:lingoflash.db"),
		LogLevel:              envOr("LOG_LEVEL", "INFO"),
		SessionMaxItems:       envIntOr("SESSION_MAX_ITEMS", 3),
		PersistMaxAttempts:    envIntOr("PERSIST_MAX_ATTEMPTS", 5),
		PersistInitialBackoff: envDurationOr("PERSIST_INITIAL_BACKOFF", 200*time.Millisecond),
		PersistMaxBackoff:     envDurationOr("PERSIST_MAX_BACKOFF", 5*time.Second),
		FlushInterval:         envDurationOr("FLUSH_INTERVAL", time.Minute),
		DigestAt:              envOr("DIGEST_AT", "08:00"),
		Timezone:              envOr("TIMEZONE", "UTC"),
	}
}

// Validate checks that the configuration can actually be used to start the app.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("ADDR cannot be empty"))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("DB_PATH cannot be empty"))
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of DEBUG, INFO, WARN, ERROR, got %q", c.LogLevel))
	}
	if c.SessionMaxItems < 1 || c.SessionMaxItems > 100 {
		errs = append(errs, fmt.Errorf("SESSION_MAX_ITEMS must be between 1 and 100, got %d", c.SessionMaxItems))
	}
	if c.PersistMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("PERSIST_MAX_ATTEMPTS must be at least 1, got %d", c.PersistMaxAttempts))
	}
	if c.PersistInitialBackoff <= 0 {
		errs = append(errs, fmt.Errorf("PERSIST_INITIAL_BACKOFF must be positive, got %s", c.PersistInitialBackoff))
	}
	if c.PersistMaxBackoff < c.PersistInitialBackoff {
		errs = append(errs, fmt.Errorf("PERSIST_MAX_BACKOFF (%s) must not be below PERSIST_INITIAL_BACKOFF (%s)", c.PersistMaxBackoff, c.PersistInitialBackoff))
	}
	if c.FlushInterval < time.Second {
		errs = append(errs, fmt.Errorf("FLUSH_INTERVAL must be at least 1s, got %s", c.FlushInterval))
	}
	if _, err := time.Parse("15:04", c.DigestAt); err != nil {
		errs = append(errs, fmt.Errorf("DIGEST_AT must be HH:MM, got %q", c.DigestAt))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q is not a valid location: %w", c.Timezone, err))
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid value for %s=%q, using default %s", key, v, def)
	}
	return def
}
