// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// Service provides signup, login and logout.
type Service struct {
	identities IdentityStore
	sessions   *SessionManager
	hasher     PasswordHasher
	validator  *Validator
	signups    *keyedMutex
	logger     *slog.Logger
}

// NewAuthService creates a new Service using slog.Default().
func NewAuthService(identities IdentityStore, sessions *SessionManager, hasher PasswordHasher) (*Service, error) {
	return NewAuthServiceWithLogger(identities, sessions, hasher, slog.Default())
}

// NewAuthServiceWithLogger creates a new Service with an explicit logger.
func NewAuthServiceWithLogger(identities IdentityStore, sessions *SessionManager, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if identities == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("identity store is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}
	return &Service{
		identities: identities,
		sessions:   sessions,
		hasher:     hasher,
		validator:  NewValidator(),
		signups:    newKeyedMutex(),
		logger:     logger,
	}, nil
}

// dummyPasswordHash is verified when no principal has the email so that
// unknown and known emails take comparable time. It never matches.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$2a$12$AAAAAAAAAAAAAAAAAAAAAOAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAa"

// Signup registers a standard principal and returns an authenticated
// session with its plaintext token. currentToken is the caller's existing
// session token, possibly empty; it is destroyed on success.
func (s *Service) Signup(ctx context.Context, currentToken string, in SignupInput) (*Session, string, error) {
	if err := s.validator.ValidateSignup(in); err != nil {
		signupsTotal.WithLabelValues(outcomeValidation).Inc()
		return nil, "", err
	}

	unlock, err := s.signups.Lock(ctx, in.Username)
	if err != nil {
		return nil, "", oops.Code("AUTH_SIGNUP_CANCELLED").With("username", in.Username).Wrap(err)
	}
	defer unlock()

	_, err = LocatePrincipal(ctx, s.identities, in.Username)
	switch {
	case err == nil:
		signupsTotal.WithLabelValues(outcomeDuplicate).Inc()
		return nil, "", oops.Code(CodeDuplicateIdentity).
			With("username", in.Username).
			Wrap(ErrDuplicateIdentity)
	case !errors.Is(err, ErrNotFound):
		signupsTotal.WithLabelValues(outcomeError).Inc()
		return nil, "", err
	}

	hash, err := hashPassword(ctx, s.hasher, in.Password)
	if err != nil {
		signupsTotal.WithLabelValues(outcomeError).Inc()
		return nil, "", oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	principal, err := NewPrincipal(in.Username, in.Email, hash)
	if err != nil {
		signupsTotal.WithLabelValues(outcomeError).Inc()
		return nil, "", err
	}

	if err := s.identities.Insert(ctx, RoleStandard, principal); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			signupsTotal.WithLabelValues(outcomeDuplicate).Inc()
			return nil, "", err
		}
		signupsTotal.WithLabelValues(outcomeError).Inc()
		return nil, "", StoreUnavailable(err, "insert principal")
	}

	session, token, err := s.sessions.Establish(ctx, currentToken, principal.Username)
	if err != nil {
		signupsTotal.WithLabelValues(outcomeError).Inc()
		return nil, "", err
	}

	signupsTotal.WithLabelValues(outcomeSuccess).Inc()
	s.logger.InfoContext(ctx, "principal signed up", "username", principal.Username)
	return session, token, nil
}

// Login authenticates by email and password and returns a fresh session.
// The standard collection takes precedence when both hold the email.
// On failure no session is established and currentToken is left as is.
func (s *Service) Login(ctx context.Context, currentToken string, in LoginInput) (*Session, string, error) {
	if err := s.validator.ValidateLogin(in); err != nil {
		loginsTotal.WithLabelValues(outcomeValidation).Inc()
		return nil, "", err
	}

	creds, role, lookupErr := locateCredentials(ctx, s.identities, in.Email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		loginsTotal.WithLabelValues(outcomeError).Inc()
		return nil, "", lookupErr
	}

	if lookupErr != nil {
		// Burn the same work as a real check.
		_ = verifyPassword(ctx, s.hasher, in.Password, dummyPasswordHash)
		loginsTotal.WithLabelValues(outcomeIdentityNotFound).Inc()
		return nil, "", oops.Code(CodeIdentityNotFound).Wrap(ErrIdentityNotFound)
	}

	if !verifyPassword(ctx, s.hasher, in.Password, creds.PasswordHash) {
		loginsTotal.WithLabelValues(outcomeInvalidCredentials).Inc()
		return nil, "", oops.Code(CodeInvalidCredentials).
			With("username", creds.Username).
			Wrap(ErrInvalidCredentials)
	}

	if s.hasher.NeedsUpgrade(creds.PasswordHash) {
		s.upgradeHash(ctx, role, creds.Username, in.Password)
	}

	session, token, err := s.sessions.Establish(ctx, currentToken, creds.Username)
	if err != nil {
		loginsTotal.WithLabelValues(outcomeError).Inc()
		return nil, "", err
	}

	loginsTotal.WithLabelValues(outcomeSuccess).Inc()
	s.logger.InfoContext(ctx, "principal logged in",
		"username", creds.Username,
		"role", role.String())
	return session, token, nil
}

// upgradeHash rehashes with the current algorithm. Failures are logged;
// the login still succeeds.
func (s *Service) upgradeHash(ctx context.Context, role Role, username, password string) {
	newHash, err := hashPassword(ctx, s.hasher, password)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to rehash password",
			"username", username,
			"error", err)
		return
	}
	if err := s.identities.Update(ctx, role, username, PrincipalPatch{PasswordHash: &newHash}); err != nil {
		s.logger.WarnContext(ctx, "failed to persist upgraded password hash",
			"username", username,
			"role", role.String(),
			"error", err)
	}
}

// Logout destroys the session for token. It succeeds for unknown tokens.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// Session returns the session for token, anonymous if none is valid.
func (s *Service) Session(ctx context.Context, token string) (*Session, error) {
	return s.sessions.Lookup(ctx, token)
}

// CurrentPrincipal returns the session for token and, when authenticated,
// the principal it belongs to with its current role. The principal is nil
// for anonymous sessions. A session whose principal no longer exists is
// destroyed and reads as anonymous.
func (s *Service) CurrentPrincipal(ctx context.Context, token string) (*Session, *Principal, error) {
	session, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if !session.Authenticated {
		return session, nil, nil
	}
	principal, err := LocatePrincipal(ctx, s.identities, session.Username)
	if errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "session principal no longer exists",
			"username", session.Username)
		if err := s.sessions.Destroy(ctx, token); err != nil {
			s.logger.WarnContext(ctx, "failed to destroy orphaned session",
				"username", session.Username,
				"error", err)
		}
		return Anonymous(), nil, nil
	}
	if err != nil {
		return session, nil, err
	}
	return session, principal, nil
}

// contextHasher is implemented by hashers that honour cancellation.
type contextHasher interface {
	HashContext(ctx context.Context, password string) (string, error)
	VerifyContext(ctx context.Context, password, hash string) bool
}

func hashPassword(ctx context.Context, h PasswordHasher, password string) (string, error) {
	if ch, ok := h.(contextHasher); ok {
		return ch.HashContext(ctx, password)
	}
	return h.Hash(password)
}

func verifyPassword(ctx context.Context, h PasswordHasher, password, hash string) bool {
	if ch, ok := h.(contextHasher); ok {
		return ch.VerifyContext(ctx, password, hash)
	}
	return h.Verify(password, hash)
}
