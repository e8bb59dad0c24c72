// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdk/pkg/config"
	"pdk/pkg/executor"
	"pdk/pkg/parser"
	"pdk/pkg/parser/azure"
	"pdk/pkg/parser/github"
	"pdk/pkg/validate"
	"pdk/pkg/variables"
)

// newValidateCommand parses and validates a pipeline file without
// running it: parse → validate, reporting every issue and exiting
// non-zero on the first fatal one. Useful as a pre-commit or CI check
// on the pipeline definition itself.
func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pipeline-file>",
		Short: "Parse and validate a pipeline file without executing it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			contents, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading pipeline file: %w", err)
			}

			factory := parser.NewFactory()
			factory.Register(github.New())
			factory.Register(azure.New())

			parsed, err := factory.Parse(args[0], contents)
			if err != nil {
				return err
			}

			resolver := variables.NewResolver()
			resolver.SetConfig(cfg.Variables)
			resolver.LoadOSEnvironment()
			resolver.SetConfig(config.Variables(os.Environ()))
			resolver.SetPipelineVariables(parsed.Pipeline.Variables)

			report := validate.New(executor.NewDefaultRegistry(), resolver).Validate(parsed.Pipeline)
			for _, issue := range report.Issues {
				cmd.Println(issue.String())
			}
			if report.HasFatal() {
				return errExecutionFailed
			}
			cmd.Printf("%s: valid, %d job(s)\n", args[0], len(parsed.Pipeline.Jobs))
			return nil
		},
	}
	return cmd
}
