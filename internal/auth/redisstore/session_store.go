// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

// Package redisstore implements auth.SessionStore on Redis. Each session is
// one key whose Redis TTL matches the session expiry.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/memberwall/memberwall/internal/auth"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "memberwall:session"

type record struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore implements auth.SessionStore using Redis.
type SessionStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// WithClock sets the time source used to compute key TTLs.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		s.now = now
	}
}

// NewSessionStore creates a SessionStore on rdb.
func NewSessionStore(rdb redis.UniversalClient, opts ...Option) *SessionStore {
	s := &SessionStore{
		rdb:    rdb,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) key(tokenHash string) string {
	return s.prefix + ":" + tokenHash
}

// Create stores session with a TTL ending at its expiry.
func (s *SessionStore) Create(ctx context.Context, session *auth.Session) error {
	if session.TokenHash == "" {
		return oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return oops.Code("SESSION_INVALID_EXPIRY").
			With("expires_at", session.ExpiresAt).
			Errorf("session already expired")
	}

	data, err := json.Marshal(record{
		ID:        session.ID.String(),
		Username:  session.Username,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}

	if err := s.rdb.Set(ctx, s.key(session.TokenHash), data, ttl).Err(); err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "set session key").
			With("username", session.Username).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	data, err := s.rdb.Get(ctx, s.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session key").
			Wrap(err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").With("id", rec.ID).Wrap(err)
	}
	return &auth.Session{
		ID:            id,
		TokenHash:     tokenHash,
		Authenticated: true,
		Username:      rec.Username,
		ExpiresAt:     rec.ExpiresAt,
		CreatedAt:     rec.CreatedAt,
	}, nil
}

// Delete removes a session. Missing sessions are ignored.
func (s *SessionStore) Delete(ctx context.Context, tokenHash string) error {
	if err := s.rdb.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session key").
			Wrap(err)
	}
	return nil
}

// DeleteExpired is a no-op; Redis expires session keys on its own.
func (s *SessionStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Ping reports whether Redis is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return oops.Code("REDIS_UNAVAILABLE").Wrap(err)
	}
	return nil
}

var _ auth.SessionStore = (*SessionStore)(nil)
