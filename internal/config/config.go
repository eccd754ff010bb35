// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

// Package config loads server configuration. Sources are layered, later
// ones winning: built-in defaults, an optional YAML file, the DATABASE_URL
// and REDIS_URL environment variables (after .env files are loaded), and
// explicitly set command-line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Backend names.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config is the server configuration. The json and jsonschema tags
// describe the YAML config file; see GenerateSchema.
type Config struct {
	HTTPAddr        string        `koanf:"http-addr" json:"http-addr,omitempty" jsonschema:"description=member site listen address"`
	MetricsAddr     string        `koanf:"metrics-addr" json:"metrics-addr,omitempty" jsonschema:"description=metrics and health listen address; empty disables it"`
	DatabaseURL     string        `koanf:"database-url" json:"database-url,omitempty" jsonschema:"description=PostgreSQL connection string"`
	RedisURL        string        `koanf:"redis-url" json:"redis-url,omitempty" jsonschema:"description=Redis URL for the redis session backend"`
	IdentityBackend string        `koanf:"identity-backend" json:"identity-backend,omitempty" jsonschema:"enum=postgres,enum=memory"`
	SessionBackend  string        `koanf:"session-backend" json:"session-backend,omitempty" jsonschema:"enum=postgres,enum=redis,enum=memory"`
	SweepInterval   time.Duration `koanf:"sweep-interval" json:"sweep-interval,omitempty" jsonschema:"type=string,pattern=^(0|([0-9]+([.][0-9]+)?(ns|us|ms|s|m|h))+)$"`
	HashConcurrency int64         `koanf:"hash-concurrency" json:"hash-concurrency,omitempty" jsonschema:"minimum=1"`
	CookieSecure    bool          `koanf:"cookie-secure" json:"cookie-secure,omitempty"`
	LogFormat       string        `koanf:"log-format" json:"log-format,omitempty" jsonschema:"enum=json,enum=text"`
	LogLevel        string        `koanf:"log-level" json:"log-level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		MetricsAddr:     "127.0.0.1:9100",
		IdentityBackend: BackendPostgres,
		SessionBackend:  BackendPostgres,
		SweepInterval:   5 * time.Minute,
		HashConcurrency: 4,
		LogFormat:       "json",
		LogLevel:        "info",
	}
}

func (c Config) asMap() map[string]any {
	return map[string]any{
		"http-addr":        c.HTTPAddr,
		"metrics-addr":     c.MetricsAddr,
		"database-url":     c.DatabaseURL,
		"redis-url":        c.RedisURL,
		"identity-backend": c.IdentityBackend,
		"session-backend":  c.SessionBackend,
		"sweep-interval":   c.SweepInterval,
		"hash-concurrency": c.HashConcurrency,
		"cookie-secure":    c.CookieSecure,
		"log-format":       c.LogFormat,
		"log-level":        c.LogLevel,
	}
}

// envKeys maps environment variables onto config keys.
var envKeys = map[string]string{
	"DATABASE_URL": "database-url",
	"REDIS_URL":    "redis-url",
}

// DotenvFiles are loaded, if present, before the environment is read.
// Variables already set in the process environment are not overridden.
var DotenvFiles = []string{".env.local", ".env"}

// RegisterFlags adds a flag for every config key to flags, using the
// defaults as flag defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("http-addr", d.HTTPAddr, "member site listen address")
	flags.String("metrics-addr", d.MetricsAddr, "metrics/health listen address (empty = disabled)")
	flags.String("database-url", "", "PostgreSQL connection string (default: $DATABASE_URL)")
	flags.String("redis-url", "", "Redis URL for the redis session backend (default: $REDIS_URL)")
	flags.String("identity-backend", d.IdentityBackend, "identity store backend (postgres or memory)")
	flags.String("session-backend", d.SessionBackend, "session store backend (postgres, redis or memory)")
	flags.Duration("sweep-interval", d.SweepInterval, "expired session sweep interval (0 = disabled)")
	flags.Int64("hash-concurrency", d.HashConcurrency, "maximum concurrent password hash operations")
	flags.Bool("cookie-secure", d.CookieSecure, "mark the session cookie Secure")
	flags.String("log-format", d.LogFormat, "log format (json or text)")
	flags.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), the environment, and the flags set in flags (may be nil).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	for key, val := range Default().asMap() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateFile(data); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	for env, key := range envKeys {
		if val, ok := os.LookupEnv(env); ok && val != "" {
			if err := k.Set(key, val); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
			}
		}
	}

	if flags != nil {
		// Unchanged flags only fill keys no earlier layer set.
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

func loadDotenv() error {
	for _, name := range DotenvFiles {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return oops.Code("CONFIG_DOTENV_FAILED").With("file", name).Wrap(err)
		}
	}
	return nil
}

// NeedsDatabase reports whether any configured backend uses PostgreSQL.
func (c *Config) NeedsDatabase() bool {
	return c.IdentityBackend == BackendPostgres || c.SessionBackend == BackendPostgres
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http-addr is required")
	}
	switch c.IdentityBackend {
	case BackendPostgres, BackendMemory:
	default:
		return oops.Code("CONFIG_INVALID").
			With("identity-backend", c.IdentityBackend).
			Errorf("identity-backend must be 'postgres' or 'memory', got %q", c.IdentityBackend)
	}
	switch c.SessionBackend {
	case BackendPostgres, BackendRedis, BackendMemory:
	default:
		return oops.Code("CONFIG_INVALID").
			With("session-backend", c.SessionBackend).
			Errorf("session-backend must be 'postgres', 'redis' or 'memory', got %q", c.SessionBackend)
	}
	if c.NeedsDatabase() && c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL is required for the postgres backend")
	}
	if c.SessionBackend == BackendRedis && c.RedisURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("REDIS_URL is required for the redis session backend")
	}
	if c.HashConcurrency < 1 {
		return oops.Code("CONFIG_INVALID").Errorf("hash-concurrency must be at least 1, got %d", c.HashConcurrency)
	}
	if c.SweepInterval < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("sweep-interval cannot be negative")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	return nil
}
