// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberwall/memberwall/internal/auth"
	"github.com/memberwall/memberwall/pkg/errutil"
)

func TestSessionRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := auth.NewAuthenticatedSession("alice", "tokenhash", time.Now().Add(time.Hour))
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(s.ID.String(), "tokenhash", "alice", s.ExpiresAt, s.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewSessionRepository(mock)
	require.NoError(t, repo.Create(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	cols := []string{"id", "token_hash", "username", "expires_at", "created_at"}
	id := ulid.Make()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantCode  string
		wantErr   error
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM sessions\s+WHERE token_hash = \$1`).
					WithArgs("tokenhash").
					WillReturnRows(pgxmock.NewRows(cols).
						AddRow(id.String(), "tokenhash", "alice", now.Add(time.Hour), now))
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM sessions`).
					WithArgs("tokenhash").
					WillReturnError(pgx.ErrNoRows)
			},
			wantCode: "SESSION_NOT_FOUND",
			wantErr:  auth.ErrNotFound,
		},
		{
			name: "query failure",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM sessions`).
					WithArgs("tokenhash").
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "SESSION_GET_BY_TOKEN_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setupMock(mock)
			repo := NewSessionRepository(mock)

			s, err := repo.GetByTokenHash(context.Background(), "tokenhash")
			if tt.wantCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, id, s.ID)
				assert.Equal(t, "alice", s.Username)
				assert.True(t, s.Authenticated)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSessionRepository_DeleteIsIdempotent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM sessions WHERE token_hash = \$1`).
		WithArgs("tokenhash").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewSessionRepository(mock)
	require.NoError(t, repo.Delete(context.Background(), "tokenhash"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	repo := NewSessionRepository(mock)
	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
