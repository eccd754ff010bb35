// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/memberwall/memberwall/internal/config"
	"github.com/memberwall/memberwall/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the memberwall CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil)
}

func newRootCmdWithDeps(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memberwall",
		Short: "memberwall - session auth and role gate for a members area",
		Long: `memberwall serves signup, login and a members area behind a
session cookie, with an elevated role managed by operators.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewRoleCmd(deps))
	cmd.AddCommand(NewReconcileCmd(deps))

	return cmd
}

// loadConfig reads and validates configuration for cmd and installs the
// process logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, oops.With("operation", "validate configuration").Wrap(err)
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: "memberwall",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
