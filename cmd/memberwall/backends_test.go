// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberwall/memberwall/internal/auth/memstore"
	"github.com/memberwall/memberwall/internal/auth/redisstore"
	"github.com/memberwall/memberwall/internal/config"
	"github.com/memberwall/memberwall/pkg/errutil"
)

func TestOpenBackends_Memory(t *testing.T) {
	b, err := openBackends(context.Background(), memoryConfig(), discardLogger())
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &memstore.IdentityStore{}, b.Identities)
	assert.Same(t, b.Identities, b.Transactor)
	assert.IsType(t, &memstore.SessionStore{}, b.Sessions)
	assert.NoError(t, b.Ready(context.Background()))
}

func TestOpenBackends_RedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.SessionBackend = config.BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr()

	b, err := openBackends(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &redisstore.SessionStore{}, b.Sessions)
	require.NoError(t, b.Ready(context.Background()))

	mr.Close()
	assert.Error(t, b.Ready(context.Background()))
}

func TestOpenBackends_InvalidRedisURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.SessionBackend = config.BackendRedis
	cfg.RedisURL = "http://not-redis"

	_, err := openBackends(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
