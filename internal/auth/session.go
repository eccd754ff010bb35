// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32        // 32 bytes = 64 hex chars
	SessionTTL        = time.Hour // fixed window, reset on every establish
)

// Session is a server-side session. A zero TokenHash means the session was
// never persisted and is anonymous.
type Session struct {
	ID            ulid.ULID
	TokenHash     string
	Authenticated bool
	Username      string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// NewAuthenticatedSession creates a session for username expiring at expiresAt.
func NewAuthenticatedSession(username, tokenHash string, expiresAt time.Time) (*Session, error) {
	if username == "" {
		return nil, oops.Code("SESSION_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &Session{
		ID:            ulid.Make(),
		TokenHash:     tokenHash,
		Authenticated: true,
		Username:      username,
		ExpiresAt:     expiresAt,
		CreatedAt:     time.Now(),
	}, nil
}

// Anonymous returns an unauthenticated session that has not been stored.
func Anonymous() *Session {
	return &Session{}
}

// IsExpiredAt returns true if the session is expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !s.ExpiresAt.After(t)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; only the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionStore persists sessions keyed by token hash.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session. Returns an error wrapping
	// ErrNotFound if no session has the hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteExpired removes all sessions expired at now and returns how many
	// were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
