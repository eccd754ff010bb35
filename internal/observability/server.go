// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

// Package observability serves Prometheus metrics and health probes on a
// listener separate from the member-facing site.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns nil when the service can take traffic.
type ReadinessChecker func(ctx context.Context) error

// readinessTimeout bounds a single readiness probe.
const readinessTimeout = 2 * time.Second

// Metrics holds the HTTP metrics recorded by the web layer.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the HTTP metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memberwall_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memberwall_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	return m
}

// Server provides HTTP endpoints for metrics and health probes.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	gatherer   prometheus.Gatherer
	metrics    *Metrics
	isReady    ReadinessChecker
	logger     *slog.Logger
	running    atomic.Bool
}

// NewServer creates a new observability server listening on addr
// ("127.0.0.1:9100", ":9100"). /metrics exposes the HTTP metrics together
// with everything on the default registry, which includes the auth
// counters and the Go and process collectors.
func NewServer(addr string, readinessChecker ReadinessChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	return &Server{
		addr:     addr,
		gatherer: prometheus.Gatherers{registry, prometheus.DefaultGatherer},
		metrics:  NewMetrics(registry),
		isReady:  readinessChecker,
		logger:   logger,
	}
}

// Metrics returns the HTTP metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the mux serving the observability endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	return mux
}

// Start begins serving observability endpoints. The returned channel
// receives a serve error, if any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	s.logger.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if it has
// not started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := s.isReady(ctx); err != nil {
			s.logger.WarnContext(ctx, "readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			//nolint:errcheck // health check write error is acceptable, client may disconnect
			w.Write([]byte("not ready\n"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}
