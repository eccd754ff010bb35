// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/memberwall/memberwall/internal/config"
	"github.com/memberwall/memberwall/internal/store"
)

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Manage the PostgreSQL schema for principals and sessions.
Without a subcommand all pending migrations are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return migrateUp(cmd, m)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return migrateUp(cmd, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return migrateStatus(cmd, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Long:  `Set the schema version and clear the dirty flag after a failed migration was repaired by hand.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator loads config, opens a migrator and runs fn with it.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) error {
	deps = deps.withDefaults()

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL is required for migrations")
	}

	m, err := deps.MigratorFactory(cfg.DatabaseURL)
	if err != nil {
		return oops.With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: %v\n", closeErr)
		}
	}()
	return fn(m)
}

func migrateUp(cmd *cobra.Command, m Migrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func migrateStatus(cmd *cobra.Command, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Current version: %d (%s)\n", v, state)
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	cmd.Println("Pending migrations:")
	for _, p := range pending {
		name, err := store.MigrationName(p)
		if err != nil || name == "" {
			name = fmt.Sprintf("%06d", p)
		}
		cmd.Printf("  %s\n", name)
	}
	return nil
}

// parseForceVersion reads the leading integer of s.
func parseForceVersion(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimLeft(s, " \t"), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	return v, nil
}
