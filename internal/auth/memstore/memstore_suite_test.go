// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package memstore_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/memberwall/memberwall/internal/auth/authtest"
	"github.com/memberwall/memberwall/internal/auth/memstore"
)

func TestMemstore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Memstore Suite")
}

var _ = authtest.DescribeIdentityStore("memstore", func() authtest.IdentityBackend {
	s := memstore.NewIdentityStore()
	return authtest.IdentityBackend{Store: s, Transactor: s}
})
