// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// SessionManager issues, reads and destroys sessions.
//
// A session moves Anonymous -> Authenticated -> Destroyed. Expiry is a
// fixed window of SessionTTL from the last Establish; there is no sliding
// refresh on reads.
type SessionManager struct {
	store  SessionStore
	now    func() time.Time
	logger *slog.Logger
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		m.now = now
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(logger *slog.Logger) SessionManagerOption {
	return func(m *SessionManager) {
		m.logger = logger
	}
}

// NewSessionManager creates a SessionManager backed by store.
func NewSessionManager(store SessionStore, opts ...SessionManagerOption) (*SessionManager, error) {
	if store == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("session store is required")
	}
	m := &SessionManager{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.now == nil || m.logger == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("clock and logger cannot be nil")
	}
	return m, nil
}

// Lookup returns the session for token. Missing, unknown and expired
// tokens all read as an anonymous session.
func (m *SessionManager) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return Anonymous(), nil
	}

	tokenHash := HashSessionToken(token)
	session, err := m.store.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Anonymous(), nil
		}
		return nil, StoreUnavailable(err, "get session by token hash")
	}

	if session.IsExpiredAt(m.now()) {
		if delErr := m.store.Delete(ctx, tokenHash); delErr != nil {
			m.logger.WarnContext(ctx, "failed to delete expired session",
				"username", session.Username,
				"error", delErr)
		}
		return Anonymous(), nil
	}
	return session, nil
}

// Establish authenticates a new session for username and returns it with
// its plaintext token. The previous token, if any, is destroyed so an
// anonymous id is never promoted in place.
func (m *SessionManager) Establish(ctx context.Context, previousToken, username string) (*Session, string, error) {
	if previousToken != "" {
		if err := m.store.Delete(ctx, HashSessionToken(previousToken)); err != nil {
			m.logger.WarnContext(ctx, "failed to destroy previous session",
				"username", username,
				"error", err)
		}
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", err
	}

	session, err := NewAuthenticatedSession(username, tokenHash, m.now().Add(SessionTTL))
	if err != nil {
		return nil, "", err
	}

	if err := m.store.Create(ctx, session); err != nil {
		return nil, "", StoreUnavailable(err, "create session")
	}
	return session, token, nil
}

// Destroy removes the session for token. Destroying an unknown or empty
// token succeeds.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, HashSessionToken(token)); err != nil {
		return StoreUnavailable(err, "delete session")
	}
	return nil
}

// Sweep removes expired sessions once.
func (m *SessionManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, StoreUnavailable(err, "delete expired sessions")
	}
	sessionsSweptTotal.Add(float64(n))
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *SessionManager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.logger.WarnContext(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				m.logger.DebugContext(ctx, "swept expired sessions", "count", n)
			}
		}
	}
}
