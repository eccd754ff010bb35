// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

// Package memstore provides in-memory identity and session stores for
// development and tests. State is lost on restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/memberwall/memberwall/internal/auth"
)

// IdentityStore keeps each role's principals in its own map keyed by username.
// It also implements auth.Transactor: writes made through a transaction's
// context are undone if the transaction fails, and writes from other
// callers are left alone.
type IdentityStore struct {
	mu          sync.RWMutex
	collections map[auth.Role]map[string]*auth.Principal

	// txMu serializes transactions. Plain calls are not blocked by it.
	txMu sync.Mutex
}

type txKey struct{}

// txLog records the prior value of every entry a transaction wrote.
type txLog struct {
	store *IdentityStore
	undo  []undoEntry
}

// undoEntry restores prev at role/username; a nil prev means absent.
type undoEntry struct {
	role     auth.Role
	username string
	prev     *auth.Principal
}

// record notes the current value of role/username before ctx's
// transaction overwrites it. Callers hold s.mu.
func (s *IdentityStore) record(ctx context.Context, role auth.Role, c map[string]*auth.Principal, username string) {
	log, ok := ctx.Value(txKey{}).(*txLog)
	if !ok || log.store != s {
		return
	}
	log.undo = append(log.undo, undoEntry{role: role, username: username, prev: c[username]})
}

// NewIdentityStore creates an empty IdentityStore.
func NewIdentityStore() *IdentityStore {
	s := &IdentityStore{collections: make(map[auth.Role]map[string]*auth.Principal)}
	for _, role := range auth.Roles {
		s.collections[role] = make(map[string]*auth.Principal)
	}
	return s
}

func (s *IdentityStore) collection(role auth.Role) (map[string]*auth.Principal, error) {
	c, ok := s.collections[role]
	if !ok {
		return nil, oops.Code("MEMSTORE_UNKNOWN_ROLE").With("role", role.String()).Errorf("unknown role")
	}
	return c, nil
}

func clonePrincipal(p *auth.Principal, role auth.Role) *auth.Principal {
	c := *p
	c.Role = role
	return &c
}

// FindByEmail returns the earliest created principal with email.
func (s *IdentityStore) FindByEmail(_ context.Context, role auth.Role, email string) (*auth.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(role)
	if err != nil {
		return nil, err
	}

	var found *auth.Principal
	for _, p := range c {
		if p.Email != email {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) ||
			(p.CreatedAt.Equal(found.CreatedAt) && p.Username < found.Username) {
			found = p
		}
	}
	if found == nil {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").With("role", role.String()).Wrap(auth.ErrNotFound)
	}
	return &auth.Credentials{
		Username:     found.Username,
		Email:        found.Email,
		PasswordHash: found.PasswordHash,
	}, nil
}

// FindByUsername returns a copy of the principal with username.
func (s *IdentityStore) FindByUsername(_ context.Context, role auth.Role, username string) (*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(role)
	if err != nil {
		return nil, err
	}
	p, ok := c[username]
	if !ok {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").
			With("role", role.String()).
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return clonePrincipal(p, role), nil
}

// Insert stores a copy of principal.
func (s *IdentityStore) Insert(ctx context.Context, role auth.Role, principal *auth.Principal) error {
	if principal == nil {
		return oops.Code("PRINCIPAL_INVALID").Errorf("principal cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(role)
	if err != nil {
		return err
	}
	if _, exists := c[principal.Username]; exists {
		return oops.Code(auth.CodeDuplicateIdentity).
			With("role", role.String()).
			With("username", principal.Username).
			Wrap(auth.ErrDuplicateIdentity)
	}
	s.record(ctx, role, c, principal.Username)
	c[principal.Username] = clonePrincipal(principal, role)
	return nil
}

// Update applies patch to the principal with username.
func (s *IdentityStore) Update(ctx context.Context, role auth.Role, username string, patch auth.PrincipalPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(role)
	if err != nil {
		return err
	}
	p, ok := c[username]
	if !ok {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("role", role.String()).
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if patch.IsEmpty() {
		return nil
	}

	updated := *p
	if patch.Email != nil {
		updated.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		updated.PasswordHash = *patch.PasswordHash
	}
	updated.UpdatedAt = time.Now().UTC()
	s.record(ctx, role, c, username)
	c[username] = &updated
	return nil
}

// Remove deletes the principal with username.
func (s *IdentityStore) Remove(ctx context.Context, role auth.Role, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(role)
	if err != nil {
		return err
	}
	if _, ok := c[username]; !ok {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("role", role.String()).
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	s.record(ctx, role, c, username)
	delete(c, username)
	return nil
}

// ListAll returns copies of every principal in role ordered by username.
func (s *IdentityStore) ListAll(_ context.Context, role auth.Role) ([]*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(role)
	if err != nil {
		return nil, err
	}
	out := make([]*auth.Principal, 0, len(c))
	for _, p := range c {
		out = append(out, clonePrincipal(p, role))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// InTransaction runs fn and, if it fails, undoes the writes fn made
// through its context. Transactions are serialized against each other; a
// nested call joins the outer transaction.
func (s *IdentityStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if log, ok := ctx.Value(txKey{}).(*txLog); ok && log.store == s {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	log := &txLog{store: s}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		s.rollback(log)
		return err
	}
	return nil
}

func (s *IdentityStore) rollback(log *txLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(log.undo) - 1; i >= 0; i-- {
		u := log.undo[i]
		c := s.collections[u.role]
		if u.prev == nil {
			delete(c, u.username)
			continue
		}
		c[u.username] = u.prev
	}
}

// Compile-time interface checks.
var (
	_ auth.IdentityStore = (*IdentityStore)(nil)
	_ auth.Transactor    = (*IdentityStore)(nil)
)
