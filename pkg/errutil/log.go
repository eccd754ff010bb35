// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

// Package errutil bridges oops errors to slog and to test assertions.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. For oops errors the code and context
// are logged as separate attributes.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError with a context, so handlers that read trace
// ids from ctx can stamp them.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(ctx, msg, Attrs(err)...)
}

// Attrs returns slog key/value pairs describing err.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
