// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

// Package main is the entry point for the memberwall server and its
// operator commands.
package main

import (
	"fmt"
	"os"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = formatVersion(version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func formatVersion(version, commit, date string) string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}
