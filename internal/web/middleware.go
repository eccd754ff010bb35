// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/memberwall/memberwall/internal/logging"
)

// RequestIDHeader carries the request id in responses.
const RequestIDHeader = "X-Request-ID"

// requestID tags each request context with a fresh ULID so every log line
// written while serving it carries request_id.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ulid.Make().String()
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		h.logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

func (h *Handler) recordMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		h.metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		h.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (h *Handler) recovered(c *gin.Context, rec any) {
	h.logger.ErrorContext(c.Request.Context(), "panic serving request",
		"path", c.Request.URL.Path,
		"panic", rec)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
		Code:    codeInternal,
		Message: "internal server error",
	})
}
