// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/memberwall/memberwall/internal/auth"
)

// SessionStore keeps sessions in a map keyed by token hash.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*auth.Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*auth.Session)}
}

// Create stores a copy of session.
func (s *SessionStore) Create(_ context.Context, session *auth.Session) error {
	if session == nil || session.TokenHash == "" {
		return oops.Code("SESSION_INVALID_HASH").Errorf("session token hash cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *session
	s.sessions[session.TokenHash] = &c
	return nil
}

// GetByTokenHash returns a copy of the session with tokenHash.
func (s *SessionStore) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	c := *session
	return &c, nil
}

// Delete removes the session with tokenHash if present.
func (s *SessionStore) Delete(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

// DeleteExpired removes sessions expired at now.
func (s *SessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, session := range s.sessions {
		if session.IsExpiredAt(now) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// Len reports how many sessions are stored.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ auth.SessionStore = (*SessionStore)(nil)
