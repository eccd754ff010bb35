// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

// Package store owns the Postgres connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions tunes how long Connect waits for the database.
type ConnectOptions struct {
	// MaxAttempts caps ping attempts. Zero means 1.
	MaxAttempts uint64
	// InitialBackoff is the first wait between attempts.
	InitialBackoff time.Duration
	// MaxBackoff caps each wait.
	MaxBackoff time.Duration
	Logger     *slog.Logger
}

// DefaultConnectOptions retries for roughly half a minute.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		MaxAttempts:    8,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Logger:         slog.Default(),
	}
}

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pool for dsn and pings it with exponential backoff until
// the database answers or attempts run out.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}

	if err := waitForDatabase(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForDatabase(ctx context.Context, db pinger, opts ConnectOptions) error {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	backoff := retry.NewExponential(opts.InitialBackoff)
	if opts.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(opts.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(opts.MaxAttempts-1, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			opts.Logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_UNAVAILABLE").With("attempts", attempt).Wrap(err)
	}
	return nil
}
