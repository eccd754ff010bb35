// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

// Package auth provides session-based authentication and the role gate for
// the members area.
//
// # Domain Types
//
// Principals live in exactly one of two collections, standard or elevated.
// A principal's Role is the collection that holds it, not a stored field.
// Create domain types through their constructors:
//   - NewPrincipal - creates a standard Principal from validated input
//   - NewAuthenticatedSession - creates a Session with token hash and expiry
//
// # Services
//
//   - Service - signup, login, logout and current-principal lookup
//   - SessionManager - session issue, read, destroy and expiry sweeping
//   - RoleService - role transitions, admin listing and duplicate reconciliation
//
// Services are created with New* constructors that validate dependencies.
// Storage is reached only through IdentityStore, SessionStore and Transactor;
// see the postgres, memstore and redisstore subpackages.
package auth
