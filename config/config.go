// Package config loads SDK configuration from environment variables.
//
// Variables carry the IFS_ prefix; the first underscore after the prefix
// selects the config section, so IFS_CREDENTIALS_POSTGRES maps to
// credentials.postgres. A .env file, when present, is loaded into the
// process environment before anything is read.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// envPrefix is the prefix shared by all SDK environment variables.
const envPrefix = "IFS_"

// Defaults for optional knobs.
const (
	DefaultCommitEvery = 1_000_000
	DefaultChunkSize   = 100
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Config holds all SDK configuration.
type Config struct {
	Credentials CredentialsConfig `koanf:"credentials" validate:"required"`
	Insert      InsertConfig      `koanf:"insert"`
	Log         LogConfig         `koanf:"log"`
}

// CredentialsConfig carries database connection details.
type CredentialsConfig struct {
	// Postgres is the PostgreSQL connection string (IFS_CREDENTIALS_POSTGRES, required).
	Postgres string `koanf:"postgres" validate:"required"`
}

// InsertConfig tunes the bulk inserter.
type InsertConfig struct {
	// CommitEvery is the row-count commit interval for bulk inserts
	// (IFS_INSERT_COMMIT_EVERY, default 1000000).
	CommitEvery int `koanf:"commit_every"`

	// ChunkSize bounds the inline VALUES table of bulk ID lookups
	// (IFS_INSERT_CHUNK_SIZE, default 100).
	ChunkSize int `koanf:"chunk_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level: debug, info, warn, error (IFS_LOG_LEVEL, default info).
	Level string `koanf:"level"`

	// Format is the log format: text or json (IFS_LOG_FORMAT, default text).
	Format string `koanf:"format"`
}

// Load reads configuration from the environment, applies defaults for unset
// values, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only at process startup where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// envKey maps an environment variable name to a koanf key path:
// IFS_CREDENTIALS_POSTGRES -> credentials.postgres,
// IFS_INSERT_COMMIT_EVERY -> insert.commit_every.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func (c *Config) applyDefaults() {
	if c.Insert.CommitEvery == 0 {
		c.Insert.CommitEvery = DefaultCommitEvery
	}
	if c.Insert.ChunkSize == 0 {
		c.Insert.ChunkSize = DefaultChunkSize
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	var errs []string
	if c.Insert.CommitEvery < 0 {
		errs = append(errs, "IFS_INSERT_COMMIT_EVERY must be positive")
	}
	if c.Insert.ChunkSize < 0 {
		errs = append(errs, "IFS_INSERT_CHUNK_SIZE must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("IFS_LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, fmt.Sprintf("IFS_LOG_FORMAT (%q) must be one of: text, json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a safe representation of the config for logging.
// The connection string is masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Credentials: {Postgres: [MASKED]}, Insert: {CommitEvery: %d, ChunkSize: %d}, Log: {Level: %q, Format: %q}}",
		c.Insert.CommitEvery, c.Insert.ChunkSize, c.Log.Level, c.Log.Format)
}
