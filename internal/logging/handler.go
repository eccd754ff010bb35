// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

// Package logging builds the process slog.Logger. Every record carries the
// service name and version, plus the request id and OpenTelemetry trace
// ids found in the record's context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
)

// Options configures Setup.
type Options struct {
	Service string
	Version string
	// Format is "json" or "text". Empty means json.
	Format string
	// Level is debug, info, warn or error. Empty means info.
	Level string
}

type requestIDKey struct{}

// WithRequestID returns a context whose log records carry id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// contextHandler wraps a slog.Handler to add process and request context.
type contextHandler struct {
	handler slog.Handler
	service string
	version string
}

// Handle adds service, request and trace attributes to the record.
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	if id := RequestID(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

// Enabled reports whether the wrapped handler emits level.
func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs returns a new handler with the given attributes.
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{
		handler: h.handler.WithAttrs(attrs),
		service: h.service,
		version: h.version,
	}
}

// WithGroup returns a new handler with the given group.
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{
		handler: h.handler.WithGroup(name),
		service: h.service,
		version: h.version,
	}
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, oops.Code("LOG_INVALID_LEVEL").With("level", level).Errorf("unknown log level")
	}
}

// Setup creates a configured slog.Logger writing to w, or os.Stderr if w
// is nil.
func Setup(opts Options, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	switch opts.Format {
	case "", "json":
		base = slog.NewJSONHandler(w, handlerOpts)
	case "text":
		base = slog.NewTextHandler(w, handlerOpts)
	default:
		return nil, oops.Code("LOG_INVALID_FORMAT").With("format", opts.Format).Errorf("unknown log format")
	}

	return slog.New(&contextHandler{
		handler: base,
		service: opts.Service,
		version: opts.Version,
	}), nil
}

// SetDefault sets up a logger on stderr and installs it as slog's default.
func SetDefault(opts Options) (*slog.Logger, error) {
	logger, err := Setup(opts, nil)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
