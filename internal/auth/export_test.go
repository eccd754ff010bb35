// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// RoleTransitionPartialCounter exposes the partial-move counter to tests.
func RoleTransitionPartialCounter() prometheus.Counter {
	return roleTransitionPartialTotal
}
