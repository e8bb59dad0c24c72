// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine that normalizes GitHub Actions
and Azure DevOps YAML into a common model and executes it locally.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package cli wires together the PDK root Cobra command and global CLI
// options. It is deliberately thin: argument parsing and command
// registration only, per spec.md's "thin command-line front end" scope
// note — everything behind a subcommand delegates straight into
// pkg/pipeline.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ErrCommandSyntax marks a command-line syntax error (bad flag, wrong
// argument count). main.go maps it to exit code 2 per spec.md §6,
// distinct from exit code 1 for execution/validation failures.
var ErrCommandSyntax = errors.New("command-line syntax error")

// exactArgs wraps cobra.ExactArgs so argument-count mismatches surface
// as ErrCommandSyntax rather than a bare cobra error.
func exactArgs(n int) cobra.PositionalArgs {
	inner := cobra.ExactArgs(n)
	return func(cmd *cobra.Command, args []string) error {
		if err := inner(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", ErrCommandSyntax, err)
		}
		return nil
	}
}

// NewRootCommand constructs the PDK root Cobra command.
func NewRootCommand() *cobra.Command {
	version := os.Getenv("PDK_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "pdk",
		Short:         "PDK – run CI/CD pipeline definitions locally",
		Long:          "PDK ingests GitHub Actions and Azure DevOps pipeline YAML, normalizes it into a common job model, and executes it on this machine, in containers or on the host.",
		SilenceUsage:  true, // don't dump usage on user errors
		SilenceErrors: true, // centralize error printing in main()
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrCommandSyntax, err)
	})

	// Global flags - registered in lexicographic order for deterministic help output.
	cmd.PersistentFlags().StringP("config", "c", "", "path to .pdkrc or pdk.config.json (default: discovered upward from cwd)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose (debug-level) output")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of PDK",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("pdk version " + version)
		},
	})

	// Subcommands - keep registrations in lexicographic order by .Use.
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newValidateCommand())

	return cmd
}
