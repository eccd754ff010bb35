// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/memberwall/memberwall/internal/auth"
)

// Transactor implements auth.Transactor. It stores the active pgx.Tx in
// ctx so repository calls made with that ctx join the transaction.
type Transactor struct {
	db DB
}

// NewTransactor creates a Transactor backed by db.
func NewTransactor(db DB) *Transactor {
	return &Transactor{db: db}
}

// InTransaction begins a transaction, stores it in context, and calls fn.
// The transaction commits if fn returns nil and rolls back otherwise.
// Nested calls reuse the outer transaction.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	tx, err := t.db.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

var _ auth.Transactor = (*Transactor)(nil)
