// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberwall/memberwall/internal/auth"
	"github.com/memberwall/memberwall/pkg/errutil"
)

func TestGenerateSessionToken(t *testing.T) {
	t.Run("generates secure token", func(t *testing.T) {
		token, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		assert.Len(t, token, 64) // 32 bytes hex-encoded
		assert.Len(t, hash, 64)  // sha256 hex-encoded
		assert.NotEqual(t, token, hash)
		assert.Equal(t, auth.HashSessionToken(token), hash)
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		token1, _, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		token2, _, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		assert.NotEqual(t, token1, token2)
	})
}

func TestNewAuthenticatedSession(t *testing.T) {
	expires := time.Now().Add(auth.SessionTTL)

	tests := []struct {
		name      string
		username  string
		hash      string
		expiresAt time.Time
		wantCode  string
	}{
		{"valid", "alice", "hash", expires, ""},
		{"empty username", "", "hash", expires, "SESSION_INVALID_USERNAME"},
		{"empty hash", "alice", "", expires, "SESSION_INVALID_HASH"},
		{"zero expiry", "alice", "hash", time.Time{}, "SESSION_INVALID_EXPIRY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := auth.NewAuthenticatedSession(tt.username, tt.hash, tt.expiresAt)
			if tt.wantCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.True(t, s.Authenticated)
			assert.Equal(t, tt.username, s.Username)
			assert.NotZero(t, s.ID)
		})
	}
}

func TestSession_IsExpiredAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &auth.Session{ExpiresAt: now}

	assert.False(t, s.IsExpiredAt(now.Add(-time.Nanosecond)))
	assert.True(t, s.IsExpiredAt(now), "expiry instant is already expired")
	assert.True(t, s.IsExpiredAt(now.Add(time.Second)))
}
