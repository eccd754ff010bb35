// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/memberwall/memberwall/internal/auth"
)

// Redirect targets.
const (
	homePath       = "/"
	membersPath    = "/members"
	principalsPath = "/admin/principals"
)

type homeResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

type memberResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type meResponse struct {
	Authenticated bool       `json:"authenticated"`
	Username      string     `json:"username,omitempty"`
	Email         string     `json:"email,omitempty"`
	Role          string     `json:"role,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type principalResponse struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type roleForm struct {
	Username string `form:"username" json:"username"`
	Role     string `form:"role" json:"role"`
}

func sessionToken(c *gin.Context) string {
	token, err := c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return token
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int(auth.SessionTTL.Seconds()), "/", "", h.secureCookie, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", h.secureCookie, true)
}

// bind decodes the request form or JSON body into dst.
func bind(c *gin.Context, dst any) error {
	if err := c.ShouldBind(dst); err != nil {
		return &auth.ValidationError{Message: "malformed request body"}
	}
	return nil
}

func (h *Handler) home(c *gin.Context) {
	session, err := h.auth.Session(c.Request.Context(), sessionToken(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, homeResponse{
		Authenticated: session.Authenticated,
		Username:      session.Username,
	})
}

func (h *Handler) signup(c *gin.Context) {
	var in auth.SignupInput
	if err := bind(c, &in); err != nil {
		h.respondError(c, err)
		return
	}

	_, token, err := h.auth.Signup(c.Request.Context(), sessionToken(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, token)
	c.Redirect(http.StatusSeeOther, membersPath)
}

func (h *Handler) login(c *gin.Context) {
	var in auth.LoginInput
	if err := bind(c, &in); err != nil {
		h.respondError(c, err)
		return
	}

	_, token, err := h.auth.Login(c.Request.Context(), sessionToken(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, token)
	c.Redirect(http.StatusSeeOther, membersPath)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), sessionToken(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, homePath)
}

func (h *Handler) members(c *gin.Context) {
	_, principal, err := h.auth.CurrentPrincipal(c.Request.Context(), sessionToken(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if principal == nil {
		c.Redirect(http.StatusSeeOther, homePath)
		return
	}
	c.JSON(http.StatusOK, memberResponse{
		Username: principal.Username,
		Role:     principal.Role.String(),
	})
}

func (h *Handler) me(c *gin.Context) {
	session, principal, err := h.auth.CurrentPrincipal(c.Request.Context(), sessionToken(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if principal == nil {
		c.JSON(http.StatusOK, meResponse{})
		return
	}
	expires := session.ExpiresAt.UTC()
	c.JSON(http.StatusOK, meResponse{
		Authenticated: true,
		Username:      principal.Username,
		Email:         principal.Email,
		Role:          principal.Role.String(),
		ExpiresAt:     &expires,
	})
}

// caller returns the authenticated username for the request, or "".
func (h *Handler) caller(c *gin.Context) (string, error) {
	session, err := h.auth.Session(c.Request.Context(), sessionToken(c))
	if err != nil {
		return "", err
	}
	return session.Username, nil
}

func (h *Handler) listPrincipals(c *gin.Context) {
	caller, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	principals, err := h.roles.ListPrincipals(c.Request.Context(), caller)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]principalResponse, 0, len(principals))
	for _, p := range principals {
		out = append(out, principalResponse{
			Username:  p.Username,
			Email:     p.Email,
			Role:      p.Role.String(),
			CreatedAt: p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) setRole(c *gin.Context) {
	caller, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var form roleForm
	if err := bind(c, &form); err != nil {
		h.respondError(c, err)
		return
	}

	// Authorize before validating the form.
	if _, err := h.roles.RequireElevated(c.Request.Context(), caller); err != nil {
		h.respondError(c, err)
		return
	}

	target, err := auth.ParseRole(form.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if form.Username == "" {
		h.respondError(c, &auth.ValidationError{Field: "username", Message: "\"username\" is not allowed to be empty"})
		return
	}

	if _, err := h.roles.SetRole(c.Request.Context(), caller, form.Username, target); err != nil {
		if errors.Is(err, auth.ErrIdentityNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, errorBody{
				Code:    auth.CodeIdentityNotFound,
				Message: "no principal with that username",
				Field:   "username",
			})
			return
		}
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, principalsPath)
}
