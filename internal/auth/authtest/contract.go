// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

// Package authtest holds behaviour suites shared by every auth store
// implementation.
package authtest

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/memberwall/memberwall/internal/auth"
)

// IdentityBackend is what a store under test provides.
type IdentityBackend struct {
	Store      auth.IdentityStore
	Transactor auth.Transactor
	Cleanup    func()
}

// NewPrincipal builds a standard principal with a placeholder hash.
func NewPrincipal(username, email string) *auth.Principal {
	p, err := auth.NewPrincipal(username, email, "$2a$12$placeholderplaceholderplaceholderplaceholderplaceholde")
	Expect(err).NotTo(HaveOccurred())
	return p
}

// DescribeIdentityStore registers the IdentityStore contract. newBackend
// is called before each example and must return an empty store.
func DescribeIdentityStore(name string, newBackend func() IdentityBackend) bool {
	return Describe(name+" IdentityStore contract", func() {
		var (
			ctx     context.Context
			backend IdentityBackend
			store   auth.IdentityStore
		)

		BeforeEach(func() {
			ctx = context.Background()
			backend = newBackend()
			store = backend.Store
		})

		AfterEach(func() {
			if backend.Cleanup != nil {
				backend.Cleanup()
			}
		})

		Describe("Insert and FindByUsername", func() {
			It("round-trips a principal and tags the role", func() {
				p := NewPrincipal("alice", "alice@example.com")
				Expect(store.Insert(ctx, auth.RoleStandard, p)).To(Succeed())

				got, err := store.FindByUsername(ctx, auth.RoleStandard, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal(p.ID))
				Expect(got.Email).To(Equal("alice@example.com"))
				Expect(got.PasswordHash).To(Equal(p.PasswordHash))
				Expect(got.Role).To(Equal(auth.RoleStandard))
			})

			It("keeps collections disjoint", func() {
				Expect(store.Insert(ctx, auth.RoleStandard, NewPrincipal("alice", "a@example.com"))).To(Succeed())

				_, err := store.FindByUsername(ctx, auth.RoleElevated, "alice")
				Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
			})

			It("rejects a duplicate username in the same collection", func() {
				Expect(store.Insert(ctx, auth.RoleStandard, NewPrincipal("alice", "a@example.com"))).To(Succeed())

				err := store.Insert(ctx, auth.RoleStandard, NewPrincipal("alice", "other@example.com"))
				Expect(errors.Is(err, auth.ErrDuplicateIdentity)).To(BeTrue())
			})

			It("allows the same username in the other collection", func() {
				p := NewPrincipal("alice", "a@example.com")
				Expect(store.Insert(ctx, auth.RoleStandard, p)).To(Succeed())
				Expect(store.Insert(ctx, auth.RoleElevated, p)).To(Succeed())
			})
		})

		Describe("FindByEmail", func() {
			It("returns the login projection", func() {
				Expect(store.Insert(ctx, auth.RoleElevated, NewPrincipal("bob", "bob@example.com"))).To(Succeed())

				creds, err := store.FindByEmail(ctx, auth.RoleElevated, "bob@example.com")
				Expect(err).NotTo(HaveOccurred())
				Expect(creds.Username).To(Equal("bob"))
				Expect(creds.PasswordHash).NotTo(BeEmpty())
			})

			It("returns not found for an unknown email", func() {
				_, err := store.FindByEmail(ctx, auth.RoleStandard, "nobody@example.com")
				Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
			})

			It("returns the earliest created principal when emails repeat", func() {
				first := NewPrincipal("first", "shared@example.com")
				first.CreatedAt = time.Now().Add(-time.Hour).UTC().Truncate(time.Microsecond)
				second := NewPrincipal("second", "shared@example.com")
				Expect(store.Insert(ctx, auth.RoleStandard, second)).To(Succeed())
				Expect(store.Insert(ctx, auth.RoleStandard, first)).To(Succeed())

				creds, err := store.FindByEmail(ctx, auth.RoleStandard, "shared@example.com")
				Expect(err).NotTo(HaveOccurred())
				Expect(creds.Username).To(Equal("first"))
			})
		})

		Describe("Update", func() {
			It("applies only the fields set in the patch", func() {
				Expect(store.Insert(ctx, auth.RoleStandard, NewPrincipal("carol", "carol@example.com"))).To(Succeed())

				newHash := "$2a$12$anotherhashanotherhashanotherhashanotherhashanotherhas"
				Expect(store.Update(ctx, auth.RoleStandard, "carol", auth.PrincipalPatch{PasswordHash: &newHash})).To(Succeed())

				got, err := store.FindByUsername(ctx, auth.RoleStandard, "carol")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.PasswordHash).To(Equal(newHash))
				Expect(got.Email).To(Equal("carol@example.com"))
			})

			It("returns not found for an unknown username", func() {
				email := "x@example.com"
				err := store.Update(ctx, auth.RoleStandard, "ghost", auth.PrincipalPatch{Email: &email})
				Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
			})
		})

		Describe("Remove", func() {
			It("deletes only from the named collection", func() {
				p := NewPrincipal("dave", "dave@example.com")
				Expect(store.Insert(ctx, auth.RoleStandard, p)).To(Succeed())
				Expect(store.Insert(ctx, auth.RoleElevated, p)).To(Succeed())

				Expect(store.Remove(ctx, auth.RoleStandard, "dave")).To(Succeed())

				_, err := store.FindByUsername(ctx, auth.RoleStandard, "dave")
				Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
				_, err = store.FindByUsername(ctx, auth.RoleElevated, "dave")
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns not found for an unknown username", func() {
				err := store.Remove(ctx, auth.RoleElevated, "ghost")
				Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
			})
		})

		Describe("ListAll", func() {
			It("lists one collection ordered by username", func() {
				for _, name := range []string{"zed", "amy", "kim"} {
					Expect(store.Insert(ctx, auth.RoleStandard, NewPrincipal(name, name+"@example.com"))).To(Succeed())
				}
				Expect(store.Insert(ctx, auth.RoleElevated, NewPrincipal("root", "root@example.com"))).To(Succeed())

				list, err := store.ListAll(ctx, auth.RoleStandard)
				Expect(err).NotTo(HaveOccurred())
				names := make([]string, 0, len(list))
				for _, p := range list {
					names = append(names, p.Username)
				}
				Expect(names).To(Equal([]string{"amy", "kim", "zed"}))
			})
		})

		Describe("InTransaction", func() {
			It("commits every change when fn succeeds", func() {
				Expect(store.Insert(ctx, auth.RoleStandard, NewPrincipal("erin", "erin@example.com"))).To(Succeed())

				err := backend.Transactor.InTransaction(ctx, func(ctx context.Context) error {
					p, err := store.FindByUsername(ctx, auth.RoleStandard, "erin")
					if err != nil {
						return err
					}
					if err := store.Insert(ctx, auth.RoleElevated, p); err != nil {
						return err
					}
					return store.Remove(ctx, auth.RoleStandard, "erin")
				})
				Expect(err).NotTo(HaveOccurred())

				_, err = store.FindByUsername(ctx, auth.RoleElevated, "erin")
				Expect(err).NotTo(HaveOccurred())
				_, err = store.FindByUsername(ctx, auth.RoleStandard, "erin")
				Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
			})

			It("rolls back the insert when a later step fails", func() {
				Expect(store.Insert(ctx, auth.RoleStandard, NewPrincipal("frank", "frank@example.com"))).To(Succeed())
				boom := errors.New("boom")

				err := backend.Transactor.InTransaction(ctx, func(ctx context.Context) error {
					p, err := store.FindByUsername(ctx, auth.RoleStandard, "frank")
					if err != nil {
						return err
					}
					if err := store.Insert(ctx, auth.RoleElevated, p); err != nil {
						return err
					}
					return boom
				})
				Expect(errors.Is(err, boom)).To(BeTrue())

				_, err = store.FindByUsername(ctx, auth.RoleElevated, "frank")
				Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
				_, err = store.FindByUsername(ctx, auth.RoleStandard, "frank")
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})
}
