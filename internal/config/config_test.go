// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberwall/memberwall/pkg/errutil"
)

// isolate runs the test in an empty directory with no connection env vars.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("", newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "memberwall.yaml", `
http-addr: ":9090"
session-backend: redis
redis-url: redis://cache:6379/0
sweep-interval: 1m
hash-concurrency: 8
log-format: text
`)

	cfg, err := Load(path, newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, BackendRedis, cfg.SessionBackend)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, int64(8), cfg.HashConcurrency)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "memberwall.yaml", "database-url: postgres://file/db\n")
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
}

func TestLoad_ChangedFlagsWin(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "memberwall.yaml", "http-addr: \":9090\"\nlog-level: warn\n")
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := Load(path, newFlags(t, "--http-addr=:7070", "--database-url=postgres://flag/db", "--cookie-secure"))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, "postgres://flag/db", cfg.DatabaseURL)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "warn", cfg.LogLevel, "unchanged flag defaults do not override the file")
}

func TestLoad_Dotenv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.Unsetenv("DATABASE_URL"))
	writeFile(t, dir, ".env", "DATABASE_URL=postgres://dotenv/db\n")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/db", cfg.DatabaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	isolate(t)

	_, err := Load("/nonexistent/memberwall.yaml", nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.DatabaseURL = "postgres://localhost/memberwall"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "empty http addr",
			mutate:  func(c *Config) { c.HTTPAddr = "" },
			wantErr: "http-addr is required",
		},
		{
			name:    "unknown identity backend",
			mutate:  func(c *Config) { c.IdentityBackend = "mongo" },
			wantErr: "identity-backend must be",
		},
		{
			name:    "redis is not an identity backend",
			mutate:  func(c *Config) { c.IdentityBackend = BackendRedis },
			wantErr: "identity-backend must be",
		},
		{
			name:    "unknown session backend",
			mutate:  func(c *Config) { c.SessionBackend = "cookie" },
			wantErr: "session-backend must be",
		},
		{
			name:    "postgres without database url",
			mutate:  func(c *Config) { c.DatabaseURL = "" },
			wantErr: "DATABASE_URL is required",
		},
		{
			name: "memory backends need no database",
			mutate: func(c *Config) {
				c.DatabaseURL = ""
				c.IdentityBackend = BackendMemory
				c.SessionBackend = BackendMemory
			},
		},
		{
			name:    "redis without url",
			mutate:  func(c *Config) { c.SessionBackend = BackendRedis },
			wantErr: "REDIS_URL is required",
		},
		{
			name:    "zero hash concurrency",
			mutate:  func(c *Config) { c.HashConcurrency = 0 },
			wantErr: "hash-concurrency must be at least 1",
		},
		{
			name:    "negative sweep interval",
			mutate:  func(c *Config) { c.SweepInterval = -time.Second },
			wantErr: "sweep-interval cannot be negative",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: "log-format must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		})
	}
}

func TestConfig_NeedsDatabase(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.NeedsDatabase())

	cfg.IdentityBackend = BackendMemory
	cfg.SessionBackend = BackendRedis
	assert.False(t, cfg.NeedsDatabase())
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, SchemaID, schema["$id"])
	assert.Equal(t, false, schema["additionalProperties"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"http-addr", "database-url", "identity-backend", "session-backend", "sweep-interval", "log-level"} {
		assert.Contains(t, props, key)
	}
}

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "empty file", content: ""},
		{name: "full file", content: `
http-addr: ":9090"
metrics-addr: ""
identity-backend: memory
session-backend: redis
redis-url: redis://cache:6379/0
sweep-interval: 1m30s
hash-concurrency: 8
cookie-secure: true
log-format: text
log-level: debug
`},
		{name: "zero sweep interval", content: "sweep-interval: \"0\"\n"},
		{name: "unknown key", content: "http-adr: \":9090\"\n", wantErr: true},
		{name: "unknown backend", content: "session-backend: memcached\n", wantErr: true},
		{name: "hash concurrency below one", content: "hash-concurrency: 0\n", wantErr: true},
		{name: "numeric sweep interval", content: "sweep-interval: 300\n", wantErr: true},
		{name: "malformed duration", content: "sweep-interval: soon\n", wantErr: true},
		{name: "not yaml", content: "http-addr: [unclosed\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFile([]byte(tt.content))
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoad_RejectsFileFailingSchema(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "memberwall.yaml", "identity-backend: ldap\n")

	_, err := Load(path, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
