// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/memberwall/memberwall/internal/auth"
	"github.com/memberwall/memberwall/internal/config"
)

// NewRoleCmd creates the role command group.
func NewRoleCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage principal roles",
		Long:  `Manage principal roles directly against the identity store, without an elevated session.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <username> <standard|elevated>",
		Short: "Move a principal to a role",
		Long: `Move a principal to the standard or elevated collection. This is how the
first elevated principal is created.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := auth.ParseRole(args[1])
			if err != nil {
				return err
			}
			return withRoleService(cmd, deps, func(ctx context.Context, roles *auth.RoleService) error {
				previous, err := roles.AssignRole(ctx, args[0], target)
				if err != nil {
					return err
				}
				if previous == target {
					cmd.Printf("%s is already %s\n", args[0], target)
					return nil
				}
				cmd.Printf("%s: %s -> %s\n", args[0], previous, target)
				return nil
			})
		},
	})

	return cmd
}

// withRoleService loads config, opens the backends and runs fn with a
// RoleService over them.
func withRoleService(cmd *cobra.Command, deps *Deps, fn func(context.Context, *auth.RoleService) error) error {
	deps = deps.withDefaults()

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return runWithRoleService(cmd.Context(), cfg, logger, deps, fn)
}

func runWithRoleService(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Deps, fn func(context.Context, *auth.RoleService) error) error {
	backends, err := deps.OpenBackends(ctx, cfg, logger)
	if err != nil {
		return oops.Code("BACKEND_OPEN_FAILED").With("operation", "open backends").Wrap(err)
	}
	defer backends.Close()

	roles, err := auth.NewRoleServiceWithLogger(backends.Identities, backends.Transactor, logger)
	if err != nil {
		return err
	}
	return fn(ctx, roles)
}
