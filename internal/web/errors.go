// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/memberwall/memberwall/internal/auth"
	"github.com/memberwall/memberwall/pkg/errutil"
)

const codeInternal = "INTERNAL_ERROR"

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// statusFor maps an error to its HTTP status and public body. Unknown
// emails and wrong passwords share one body.
func statusFor(err error) (int, errorBody) {
	var ve *auth.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Code: auth.CodeValidation, Message: ve.Message, Field: ve.Field}
	case errors.Is(err, auth.ErrDuplicateIdentity):
		return http.StatusConflict, errorBody{Code: auth.CodeDuplicateIdentity, Message: "username is already taken"}
	case errors.Is(err, auth.ErrIdentityNotFound), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{Code: auth.CodeInvalidCredentials, Message: auth.LoginFailedMessage}
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, errorBody{Code: auth.CodeForbidden, Message: "elevated role required"}
	case errors.Is(err, auth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorBody{Code: auth.CodeStoreUnavailable, Message: "service temporarily unavailable"}
	default:
		return http.StatusInternalServerError, errorBody{Code: codeInternal, Message: "internal server error"}
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(c.Request.Context(), h.logger, "request failed", err)
	}
	c.AbortWithStatusJSON(status, body)
}
