// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/memberwall/memberwall/internal/auth"
	"github.com/memberwall/memberwall/internal/config"
	"github.com/memberwall/memberwall/internal/observability"
	"github.com/memberwall/memberwall/internal/web"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server with signup, login and the members area.
A separate listener serves Prometheus metrics and health checks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cfg, logger, deps)
		},
	}
}

// app is the composed request path.
type app struct {
	sessions *auth.SessionManager
	handler  *web.Handler
}

// newApp wires the services onto backends.
func newApp(cfg *config.Config, b *Backends, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	hasher := auth.NewGatedHasher(auth.NewBcryptHasher(), int(cfg.HashConcurrency))
	sessions, err := auth.NewSessionManager(b.Sessions, auth.WithSessionLogger(logger))
	if err != nil {
		return nil, err
	}
	authSvc, err := auth.NewAuthServiceWithLogger(b.Identities, sessions, hasher, logger)
	if err != nil {
		return nil, err
	}
	roles, err := auth.NewRoleServiceWithLogger(b.Identities, b.Transactor, logger)
	if err != nil {
		return nil, err
	}

	opts := []web.Option{web.WithLogger(logger), web.WithSecureCookie(cfg.CookieSecure)}
	if metrics != nil {
		opts = append(opts, web.WithMetrics(metrics))
	}
	handler, err := web.NewHandler(authSvc, roles, opts...)
	if err != nil {
		return nil, err
	}
	return &app{sessions: sessions, handler: handler}, nil
}

// runServeWithDeps runs the server until ctx is cancelled or a listener fails.
func runServeWithDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Deps) error {
	deps = deps.withDefaults()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	backends, err := deps.OpenBackends(ctx, cfg, logger)
	if err != nil {
		return oops.Code("BACKEND_OPEN_FAILED").With("operation", "open backends").Wrap(err)
	}
	defer backends.Close()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, backends.Ready, logger)
		metrics = obsServer.Metrics()
	}

	a, err := newApp(cfg, backends, logger, metrics)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTPAddr).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           a.handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpErrCh := make(chan error, 1)
	go func() {
		defer close(httpErrCh)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErrCh <- err
		}
	}()
	go monitorServerErrors(ctx, cancel, httpErrCh, "http")
	logger.Info("http server started", "addr", listener.Addr().String())

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			shutdownHTTP(httpServer, logger)
			return oops.Code("OBSERVABILITY_START_FAILED").With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	if cfg.SweepInterval > 0 && cfg.SessionBackend != config.BackendRedis {
		go a.sessions.RunSweeper(ctx, cfg.SweepInterval)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownHTTP(httpServer, logger)
	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func shutdownHTTP(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
