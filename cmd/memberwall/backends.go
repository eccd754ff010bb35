// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/memberwall/memberwall/internal/auth/memstore"
	"github.com/memberwall/memberwall/internal/auth/postgres"
	"github.com/memberwall/memberwall/internal/auth/redisstore"
	"github.com/memberwall/memberwall/internal/config"
	"github.com/memberwall/memberwall/internal/store"
)

func newStoreMigrator(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}

// openBackends connects the stores named in cfg.
func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	var (
		pool    *pgxpool.Pool
		rdb     *redis.Client
		checks  []func(context.Context) error
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.NeedsDatabase() {
		opts := store.DefaultConnectOptions()
		opts.Logger = logger
		p, err := store.Connect(ctx, cfg.DatabaseURL, opts)
		if err != nil {
			return nil, err
		}
		pool = p
		closers = append(closers, pool.Close)
		checks = append(checks, pool.Ping)
		logger.Info("connected to database")
	}

	b := &Backends{}
	switch cfg.IdentityBackend {
	case config.BackendPostgres:
		b.Identities = postgres.NewPrincipalRepository(pool)
		b.Transactor = postgres.NewTransactor(pool)
	case config.BackendMemory:
		mem := memstore.NewIdentityStore()
		b.Identities = mem
		b.Transactor = mem
		logger.Warn("using in-memory identity store; principals are lost on exit")
	}

	switch cfg.SessionBackend {
	case config.BackendPostgres:
		b.Sessions = postgres.NewSessionRepository(pool)
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, oops.Code("CONFIG_INVALID").With("redis-url", cfg.RedisURL).Wrap(err)
		}
		rdb = redis.NewClient(opts)
		closers = append(closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis client", "error", err)
			}
		})
		sessions := redisstore.NewSessionStore(rdb)
		checks = append(checks, sessions.Ping)
		b.Sessions = sessions
	case config.BackendMemory:
		b.Sessions = memstore.NewSessionStore()
	}

	b.Ready = func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	b.Close = closeAll
	return b, nil
}
