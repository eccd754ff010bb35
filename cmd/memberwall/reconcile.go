// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/memberwall/memberwall/internal/auth"
)

// reconcileConfig holds flags for the reconcile command.
type reconcileConfig struct {
	fix    bool
	prefer string
}

// NewReconcileCmd creates the reconcile subcommand.
func NewReconcileCmd(deps *Deps) *cobra.Command {
	rc := &reconcileConfig{}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Find principals present in both role collections",
		Long: `Find usernames held by both the standard and the elevated collection,
which a role change interrupted between insert and delete can leave behind.
With --fix the copy in the --prefer collection is kept and the other removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prefer, err := auth.ParseRole(rc.prefer)
			if err != nil {
				return err
			}
			return withRoleService(cmd, deps, func(ctx context.Context, roles *auth.RoleService) error {
				return runReconcile(ctx, cmd, roles, rc.fix, prefer)
			})
		},
	}

	cmd.Flags().BoolVar(&rc.fix, "fix", false, "remove the duplicate copy outside --prefer")
	cmd.Flags().StringVar(&rc.prefer, "prefer", string(auth.RoleStandard), "collection whose copy is kept (standard or elevated)")

	return cmd
}

func runReconcile(ctx context.Context, cmd *cobra.Command, roles *auth.RoleService, fix bool, prefer auth.Role) error {
	dups, err := roles.Reconcile(ctx, fix, prefer)
	for _, d := range dups {
		if d.Removed != "" {
			cmd.Printf("%s: removed %s copy\n", d.Username, d.Removed)
			continue
		}
		cmd.Printf("%s: present in both collections\n", d.Username)
	}
	if err != nil {
		return err
	}
	if len(dups) == 0 {
		cmd.Println("No duplicate principals")
	}
	return nil
}
