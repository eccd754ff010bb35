// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	outcomeSuccess            = "success"
	outcomeValidation         = "validation"
	outcomeDuplicate          = "duplicate"
	outcomeIdentityNotFound   = "identity_not_found"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeForbidden          = "forbidden"
	outcomeNoop               = "noop"
	outcomeError              = "error"
)

// Metrics for authentication and role transitions.
var (
	// signupsTotal counts signup attempts by outcome.
	signupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memberwall_signups_total",
		Help: "Total number of signup attempts",
	}, []string{"outcome"})

	// loginsTotal counts login attempts by outcome.
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memberwall_logins_total",
		Help: "Total number of login attempts",
	}, []string{"outcome"})

	// roleTransitionsTotal counts SetRole calls by target role and outcome.
	roleTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memberwall_role_transitions_total",
		Help: "Total number of role transition attempts",
	}, []string{"target", "outcome"})

	// roleTransitionPartialTotal counts moves that left a record in both
	// collections. Any nonzero value needs `memberwall reconcile`.
	roleTransitionPartialTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memberwall_role_transition_partial_total",
		Help: "Total number of role transitions that left a duplicate principal",
	})

	// sessionsSweptTotal counts expired sessions removed by the sweeper.
	sessionsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memberwall_sessions_swept_total",
		Help: "Total number of expired sessions removed",
	})
)
