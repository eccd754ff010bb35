// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/memberwall/memberwall/internal/auth"
)

// SessionRepository implements auth.SessionStore using PostgreSQL.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO sessions (id, token_hash, username, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		session.ID.String(),
		session.TokenHash,
		session.Username,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("username", session.Username).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	var (
		s     auth.Session
		idStr string
	)
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, token_hash, username, expires_at, created_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(&idStr, &s.TokenHash, &s.Username, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}
	s.ID = id
	s.Authenticated = true
	return &s, nil
}

// Delete removes a session. Missing sessions are ignored.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	if _, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes sessions expired at now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.SessionStore = (*SessionRepository)(nil)
