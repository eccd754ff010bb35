// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the authorization level of a principal. It is encoded by which
// identity collection currently holds the record.
type Role string

// Roles, one per identity collection.
const (
	RoleStandard Role = "standard"
	RoleElevated Role = "elevated"
)

// Roles lists every role in lookup precedence order.
var Roles = []Role{RoleStandard, RoleElevated}

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStandard, RoleElevated:
		return Role(s), nil
	default:
		return "", oops.Code(CodeValidation).
			With("role", s).
			Wrap(&ValidationError{Field: "role", Message: `"role" must be one of [standard, elevated]`})
	}
}

func (r Role) String() string {
	return string(r)
}

// Principal represents a registered identity.
type Principal struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	// Role is filled in by the store from the collection the record was read from.
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPrincipal creates a standard principal from already validated input.
func NewPrincipal(username, email, passwordHash string) (*Principal, error) {
	if username == "" {
		return nil, oops.Code("PRINCIPAL_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("PRINCIPAL_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &Principal{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         RoleStandard,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Credentials is the minimal projection used for login lookups.
type Credentials struct {
	Username     string
	Email        string
	PasswordHash string
}

// PrincipalPatch lists fields to change on Update. Nil fields are left alone.
// Username is immutable and Role changes go through RoleService.
type PrincipalPatch struct {
	Email        *string
	PasswordHash *string
}

// IsEmpty reports whether the patch changes nothing.
func (p PrincipalPatch) IsEmpty() bool {
	return p.Email == nil && p.PasswordHash == nil
}

// IdentityStore manages principals across the standard and elevated collections.
// All lookups return an error wrapping ErrNotFound when nothing matches.
type IdentityStore interface {
	// FindByEmail returns the login projection for email in the role's collection.
	FindByEmail(ctx context.Context, role Role, email string) (*Credentials, error)

	// FindByUsername returns the principal with username in the role's collection.
	FindByUsername(ctx context.Context, role Role, username string) (*Principal, error)

	// Insert stores principal in the role's collection. Returns an error
	// wrapping ErrDuplicateIdentity if the username already exists there.
	Insert(ctx context.Context, role Role, principal *Principal) error

	// Update applies patch to the principal with username in the role's collection.
	Update(ctx context.Context, role Role, username string, patch PrincipalPatch) error

	// Remove deletes the principal with username from the role's collection.
	Remove(ctx context.Context, role Role, username string) error

	// ListAll returns every principal in the role's collection ordered by username.
	ListAll(ctx context.Context, role Role) ([]*Principal, error)
}

// Transactor runs fn so that every IdentityStore call made with the ctx it
// receives commits or rolls back together.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// LocatePrincipal probes the collections in precedence order and returns the
// first record found, tagged with its role.
func LocatePrincipal(ctx context.Context, store IdentityStore, username string) (*Principal, error) {
	for _, role := range Roles {
		p, err := store.FindByUsername(ctx, role, username)
		if err == nil {
			p.Role = role
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, StoreUnavailable(err, "find principal by username")
		}
	}
	return nil, oops.Code("PRINCIPAL_NOT_FOUND").
		With("username", username).
		Wrap(ErrNotFound)
}

// locateCredentials is LocatePrincipal for the email projection.
func locateCredentials(ctx context.Context, store IdentityStore, email string) (*Credentials, Role, error) {
	for _, role := range Roles {
		c, err := store.FindByEmail(ctx, role, email)
		if err == nil {
			return c, role, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, "", StoreUnavailable(err, "find principal by email")
		}
	}
	return nil, "", ErrNotFound
}
