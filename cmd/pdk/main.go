// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine that normalizes GitHub Actions
and Azure DevOps YAML into a common model and executes it locally.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package main

import (
	"errors"
	"fmt"
	"os"

	"pdk/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// We deliberately avoid printing Cobra's default error twice
		// and centralize exit code handling here.
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cli.ErrCommandSyntax) {
			return 2
		}
		return 1
	}
	return 0
}
