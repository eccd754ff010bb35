// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberwall/memberwall/pkg/errutil"
)

func TestTransactor_CommitsOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM sessions`).
		WithArgs("tokenhash").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	repo := NewSessionRepository(mock)
	err = NewTransactor(mock).InTransaction(context.Background(), func(ctx context.Context) error {
		return repo.Delete(ctx, "tokenhash")
	})
	require.NoError(t, err)
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewTransactor(mock).InTransaction(context.Background(), func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err = NewTransactor(mock).InTransaction(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	errutil.AssertErrorCode(t, err, "TX_BEGIN_FAILED")
}

func TestTransactor_CommitFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))
	mock.ExpectRollback()

	err = NewTransactor(mock).InTransaction(context.Background(), func(context.Context) error {
		return nil
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TX_COMMIT_FAILED")
}

func TestTransactor_NestedCallsJoinOuterTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectRollback()

	tx := NewTransactor(mock)
	err = tx.InTransaction(context.Background(), func(ctx context.Context) error {
		return tx.InTransaction(ctx, func(context.Context) error { return nil })
	})
	require.NoError(t, err)
}
