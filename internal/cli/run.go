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
	"path/filepath"

	"github.com/spf13/cobra"

	"pdk/pkg/config"
	"pdk/pkg/logging"
	"pdk/pkg/pipeline"
	"pdk/pkg/progress"
	"pdk/pkg/runner"
	"pdk/pkg/secrets"
)

// newRunCommand wires `pdk run <file>` straight into pkg/pipeline.Run.
// Flag parsing and exit-code mapping are the only logic this file
// owns; everything else is the core's job.
func newRunCommand() *cobra.Command {
	var (
		runnerMode string
		preset     string
		skipSteps  []string
		setVars    []string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "run <pipeline-file>",
		Short: "Run a pipeline file locally",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			mode := runner.Mode(runnerMode)
			if mode == "" {
				mode = cfg.Runner
			}

			level, err := cfg.Logging.ResolveLevel()
			if err != nil {
				return err
			}
			if verbose {
				level = logging.LevelDebug
			}
			format, err := cfg.Logging.ResolveFormat()
			if err != nil {
				return err
			}
			logger := logging.New(logging.Config{Level: &level, Format: format})

			progressMode := progress.ModeNormal
			switch {
			case quiet:
				progressMode = progress.ModeQuiet
			case verbose:
				progressMode = progress.ModeVerbose
			}
			reporter := progress.NewCoalescer(progress.NewConsoleReporter(cmd.OutOrStdout()), progressMode)

			variables := map[string]string{}
			for _, kv := range setVars {
				name, value, ok := splitKV(kv)
				if !ok {
					return fmt.Errorf("--var %q: expected NAME=VALUE", kv)
				}
				variables[name] = value
			}

			result, err := pipeline.Run(cmd.Context(), pipeline.Options{
				PipelinePath: args[0],
				Config:       *cfg,
				RunnerMode:   mode,
				Preset:       preset,
				SkipSteps:    skipSteps,
				Variables:    variables,
				Secrets:      secrets.NewInMemoryManager(),
				Logger:       logger,
				Progress:     reporter,
			})
			if err != nil {
				return err
			}
			if !result.Success {
				return errExecutionFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runnerMode, "runner", "", "docker|host|auto (overrides config)")
	cmd.Flags().StringVar(&preset, "preset", "", "named step-filter preset from config")
	cmd.Flags().StringSliceVar(&skipSteps, "skip", nil, "step names to skip, ANDed with --preset")
	cmd.Flags().StringSliceVar(&setVars, "var", nil, "NAME=VALUE, repeatable; highest-precedence variable override")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress per-line step output")

	return cmd
}

// errExecutionFailed signals the run completed but at least one job
// failed; main.go prints it to stderr like any other error and maps it
// to exit code 1 (the per-job detail is already in the run output).
var errExecutionFailed = fmt.Errorf("pipeline run failed")

func splitKV(s string) (name, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

// loadConfig resolves --config if given, otherwise discovers .pdkrc or
// pdk.config.json upward from the working directory and finally the
// user's home directory, per spec.md §6. Layering multiple discovered
// files is config's own "plain layered-map operation" concern and is
// out of the core's scope; here we take the first file found. Once
// resolved, PDK_* environment overrides are layered on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path, _ = discoverConfig()
	}

	var cfg config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		cfg = *loaded
	} else {
		cfg = config.Default()
	}

	config.ApplyEnvOverrides(&cfg, os.Environ())
	return &cfg, nil
}

// discoverConfig walks from the working directory up to the
// filesystem root, then checks the user's home directory, returning
// the first existing candidate from config.DefaultConfigPaths.
func discoverConfig() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		for _, name := range config.DefaultConfigPaths {
			candidate := filepath.Join(dir, name)
			if exists, err := config.Exists(candidate); err == nil && exists {
				return candidate, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range config.DefaultConfigPaths {
			candidate := filepath.Join(home, name)
			if exists, err := config.Exists(candidate); err == nil && exists {
				return candidate, true
			}
		}
	}
	return "", false
}
