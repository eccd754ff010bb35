// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Sentinel errors. Every error returned by this package wraps one of these,
// so callers can branch with errors.Is regardless of the oops code attached.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed input. The concrete *ValidationError is
	// available through errors.As.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateIdentity is returned when a username is already taken.
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// ErrIdentityNotFound is returned by Login when no principal has the email.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrInvalidCredentials is returned by Login on a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is returned when the caller lacks the elevated role.
	ErrForbidden = errors.New("forbidden")

	// ErrStoreUnavailable is returned when a storage collaborator cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrTransitionPartial is returned when a role move inserted the target
	// record but the source record survived. It always accompanies
	// ErrStoreUnavailable.
	ErrTransitionPartial = errors.New("role transition left a duplicate principal")
)

// Error codes attached with oops.Code.
const (
	CodeValidation         = "AUTH_VALIDATION_FAILED"
	CodeDuplicateIdentity  = "AUTH_DUPLICATE_IDENTITY"
	CodeIdentityNotFound   = "AUTH_IDENTITY_NOT_FOUND"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeForbidden          = "AUTH_FORBIDDEN"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeTransitionPartial  = "ROLE_TRANSITION_PARTIAL"
	CodeTransitionFailed   = "ROLE_TRANSITION_FAILED"
)

// LoginFailedMessage is the single user-facing message for both unknown
// emails and wrong passwords.
const LoginFailedMessage = "invalid email or password"

// ValidationError describes the first input field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StoreUnavailable wraps a low-level store failure so it is reported as
// ErrStoreUnavailable. Errors that already carry a domain sentinel are
// returned unchanged.
func StoreUnavailable(err error, operation string) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return oops.Code(CodeStoreUnavailable).
		With("operation", operation).
		Wrap(errors.Join(ErrStoreUnavailable, err))
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrValidation,
		ErrDuplicateIdentity,
		ErrIdentityNotFound,
		ErrInvalidCredentials,
		ErrForbidden,
		ErrStoreUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
