// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/memberwall/memberwall/internal/auth"
	"github.com/memberwall/memberwall/internal/config"
	"github.com/memberwall/memberwall/internal/observability"
)

// Deps contains injectable dependencies for the commands.
// Nil fields use their default implementations.
type Deps struct {
	// OpenBackends connects the configured identity and session stores.
	// Default: openBackends
	OpenBackends func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error)

	// MigratorFactory opens a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.OpenBackends == nil {
		out.OpenBackends = openBackends
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = newStoreMigrator
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	return &out
}

// Backends are the storage collaborators the services run on.
type Backends struct {
	Identities auth.IdentityStore
	Transactor auth.Transactor
	Sessions   auth.SessionStore
	// Ready reports whether every backend answers.
	Ready observability.ReadinessChecker
	// Close releases connections. It is never nil.
	Close func()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
