// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/samber/oops"

	"github.com/memberwall/memberwall/pkg/errutil"
)

// RoleService moves principals between the standard and elevated
// collections, keeping exactly one record per username.
type RoleService struct {
	identities IdentityStore
	tx         Transactor
	locks      *keyedMutex
	logger     *slog.Logger
}

// NewRoleService creates a RoleService using slog.Default().
func NewRoleService(identities IdentityStore, tx Transactor) (*RoleService, error) {
	return NewRoleServiceWithLogger(identities, tx, slog.Default())
}

// NewRoleServiceWithLogger creates a RoleService with an explicit logger.
func NewRoleServiceWithLogger(identities IdentityStore, tx Transactor, logger *slog.Logger) (*RoleService, error) {
	if identities == nil {
		return nil, oops.Code("ROLE_INVALID_CONFIG").Errorf("identity store is required")
	}
	if tx == nil {
		return nil, oops.Code("ROLE_INVALID_CONFIG").Errorf("transactor is required")
	}
	if logger == nil {
		return nil, oops.Code("ROLE_INVALID_CONFIG").Errorf("logger is required")
	}
	return &RoleService{
		identities: identities,
		tx:         tx,
		locks:      newKeyedMutex(),
		logger:     logger,
	}, nil
}

// RequireElevated returns the caller's principal if it holds the elevated
// role, and an error wrapping ErrForbidden otherwise.
func (s *RoleService) RequireElevated(ctx context.Context, caller string) (*Principal, error) {
	if caller == "" {
		return nil, oops.Code(CodeForbidden).Wrap(ErrForbidden)
	}
	p, err := LocatePrincipal(ctx, s.identities, caller)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeForbidden).With("caller", caller).Wrap(ErrForbidden)
		}
		return nil, err
	}
	if p.Role != RoleElevated {
		return nil, oops.Code(CodeForbidden).
			With("caller", caller).
			With("role", p.Role.String()).
			Wrap(ErrForbidden)
	}
	return p, nil
}

// SetRole moves username into target on behalf of caller, who must be
// elevated. It returns the role the principal held before the call.
func (s *RoleService) SetRole(ctx context.Context, caller, username string, target Role) (Role, error) {
	if _, err := s.RequireElevated(ctx, caller); err != nil {
		roleTransitionsTotal.WithLabelValues(target.String(), outcomeForbidden).Inc()
		return "", err
	}
	return s.AssignRole(ctx, username, target)
}

// AssignRole moves username into target without an authorization check.
// It is meant for operator tooling; request paths use SetRole.
//
// The move inserts into the target collection and then removes from the
// source inside one transaction, serialized per username. The record is
// copied unchanged, timestamps included. Assigning the role a principal
// already holds is a no-op.
func (s *RoleService) AssignRole(ctx context.Context, username string, target Role) (Role, error) {
	if _, err := ParseRole(target.String()); err != nil {
		return "", err
	}

	unlock, err := s.locks.Lock(ctx, username)
	if err != nil {
		roleTransitionsTotal.WithLabelValues(target.String(), outcomeError).Inc()
		return "", oops.Code(CodeTransitionFailed).With("username", username).Wrap(err)
	}
	defer unlock()

	var (
		source   Role
		inserted bool
	)
	txErr := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		p, err := LocatePrincipal(ctx, s.identities, username)
		if err != nil {
			return err
		}
		source = p.Role
		if source == target {
			return nil
		}

		moved := *p
		moved.Role = target
		if err := s.identities.Insert(ctx, target, &moved); err != nil {
			return err
		}
		inserted = true

		return s.identities.Remove(ctx, source, username)
	})

	switch {
	case txErr == nil && source == target:
		roleTransitionsTotal.WithLabelValues(target.String(), outcomeNoop).Inc()
		return source, nil
	case txErr == nil:
		roleTransitionsTotal.WithLabelValues(target.String(), outcomeSuccess).Inc()
		s.logger.InfoContext(ctx, "role changed",
			"username", username,
			"from", source.String(),
			"to", target.String())
		return source, nil
	case errors.Is(txErr, ErrNotFound):
		roleTransitionsTotal.WithLabelValues(target.String(), outcomeIdentityNotFound).Inc()
		return "", oops.Code(CodeIdentityNotFound).
			With("username", username).
			Wrap(ErrIdentityNotFound)
	}

	if inserted && s.isDuplicated(ctx, username, source, target) {
		roleTransitionPartialTotal.Inc()
		roleTransitionsTotal.WithLabelValues(target.String(), outcomeError).Inc()
		s.logger.ErrorContext(ctx, "role transition left duplicate principal",
			"code", CodeTransitionPartial,
			"username", username,
			"from", source.String(),
			"to", target.String(),
			"error", txErr)
		return "", oops.Code(CodeTransitionPartial).
			With("username", username).
			With("from", source.String()).
			With("to", target.String()).
			Wrap(errors.Join(ErrTransitionPartial, ErrStoreUnavailable, txErr))
	}

	cause := txErr
	if !isDomainError(cause) {
		cause = errors.Join(ErrStoreUnavailable, txErr)
	}
	roleTransitionsTotal.WithLabelValues(target.String(), outcomeError).Inc()
	err = oops.Code(CodeTransitionFailed).
		With("username", username).
		With("to", target.String()).
		Wrap(cause)
	errutil.LogErrorContext(ctx, s.logger, "role transition failed", err)
	return "", err
}

// isDuplicated reports whether username ended up in both collections after
// a failed move. Probe errors count as not duplicated; the move error is
// still returned to the caller.
func (s *RoleService) isDuplicated(ctx context.Context, username string, source, target Role) bool {
	for _, role := range []Role{source, target} {
		if _, err := s.identities.FindByUsername(ctx, role, username); err != nil {
			return false
		}
	}
	return true
}

// ListPrincipals returns every principal in both collections, ordered by
// username, for an elevated caller.
func (s *RoleService) ListPrincipals(ctx context.Context, caller string) ([]*Principal, error) {
	if _, err := s.RequireElevated(ctx, caller); err != nil {
		return nil, err
	}
	return s.listAll(ctx)
}

func (s *RoleService) listAll(ctx context.Context) ([]*Principal, error) {
	var all []*Principal
	for _, role := range Roles {
		ps, err := s.identities.ListAll(ctx, role)
		if err != nil {
			return nil, StoreUnavailable(err, "list principals")
		}
		for _, p := range ps {
			p.Role = role
		}
		all = append(all, ps...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Username == all[j].Username {
			return all[i].Role < all[j].Role
		}
		return all[i].Username < all[j].Username
	})
	return all, nil
}

// Duplicate is a username present in both collections.
type Duplicate struct {
	Username string
	// Removed is the role whose copy was deleted, empty if left alone.
	Removed Role
}

// Reconcile finds usernames held by both collections. With fix set, it
// keeps the copy in prefer and removes the other.
func (s *RoleService) Reconcile(ctx context.Context, fix bool, prefer Role) ([]Duplicate, error) {
	if _, err := ParseRole(prefer.String()); err != nil {
		return nil, err
	}
	all, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(all))
	for _, p := range all {
		seen[p.Username]++
	}

	var dups []Duplicate
	for _, p := range all {
		if seen[p.Username] < 2 || p.Role != prefer {
			continue
		}
		dup := Duplicate{Username: p.Username}
		s.logger.WarnContext(ctx, "principal present in both collections",
			"code", CodeTransitionPartial,
			"username", p.Username)

		if fix {
			other := otherRole(prefer)
			removed, err := s.removeDuplicate(ctx, p.Username, prefer)
			if err != nil {
				return dups, err
			}
			if removed {
				dup.Removed = other
				s.logger.InfoContext(ctx, "removed duplicate principal",
					"username", p.Username,
					"role", other.String())
			}
		}
		dups = append(dups, dup)
	}
	return dups, nil
}

// removeDuplicate deletes username's copy outside keep, in a transaction,
// only while the copy in keep still exists. It reports whether a copy was
// removed.
func (s *RoleService) removeDuplicate(ctx context.Context, username string, keep Role) (bool, error) {
	unlock, err := s.locks.Lock(ctx, username)
	if err != nil {
		return false, oops.Code(CodeTransitionFailed).With("username", username).Wrap(err)
	}
	defer unlock()

	removed := false
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.identities.FindByUsername(ctx, keep, username); err != nil {
			if errors.Is(err, ErrNotFound) {
				s.logger.WarnContext(ctx, "preferred copy no longer exists, keeping the other",
					"username", username,
					"role", keep.String())
				return nil
			}
			return err
		}
		if err := s.identities.Remove(ctx, otherRole(keep), username); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, StoreUnavailable(err, "remove duplicate principal")
	}
	return removed, nil
}

func otherRole(r Role) Role {
	if r == RoleStandard {
		return RoleElevated
	}
	return RoleStandard
}
