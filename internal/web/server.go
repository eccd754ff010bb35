// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

// Package web exposes the auth and role services over HTTP with gin.
package web

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/memberwall/memberwall/internal/auth"
	"github.com/memberwall/memberwall/internal/observability"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "memberwall_session"

// NotFoundBody is the response body for unknown routes.
const NotFoundBody = "Page not found - 404"

// Handler serves the member site.
type Handler struct {
	auth         *auth.Service
	roles        *auth.RoleService
	logger       *slog.Logger
	metrics      *observability.Metrics
	secureCookie bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger for access and error logs.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics records request counts and latencies into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) {
		h.secureCookie = secure
	}
}

// NewHandler creates a Handler over the given services.
func NewHandler(authSvc *auth.Service, roles *auth.RoleService, opts ...Option) (*Handler, error) {
	if authSvc == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("auth service is required")
	}
	if roles == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("role service is required")
	}
	h := &Handler{
		auth:   authSvc,
		roles:  roles,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("logger cannot be nil")
	}
	return h, nil
}

// Router builds the gin engine with every route and middleware installed.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), h.accessLog(), gin.CustomRecovery(h.recovered))
	if h.metrics != nil {
		r.Use(h.recordMetrics())
	}

	r.GET("/", h.home)
	r.POST("/signup", h.signup)
	r.POST("/login", h.login)
	r.GET("/logout", h.logout)
	r.GET("/members", h.members)
	r.GET("/me", h.me)

	admin := r.Group("/admin")
	{
		admin.GET("/principals", h.listPrincipals)
		admin.POST("/role", h.setRole)
	}

	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, NotFoundBody)
	})
	return r
}
