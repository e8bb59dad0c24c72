// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package executor

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"pdk/pkg/executil"
	"pdk/pkg/model"
)

// scriptExecutor handles Script/Bash/PowerShell steps: the script body
// is written to a temp file, executed with the shell the step (or
// platform default) calls for, then removed. File-based dispatch
// avoids the quoting pitfalls of passing multi-line script bodies as a
// single `-c` argument.
type scriptExecutor struct{}

func (scriptExecutor) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	started := time.Now()

	shell := step.Shell
	if shell == model.ShellPlatformDefault {
		switch step.Kind {
		case model.StepKindBash:
			shell = model.ShellBash
		case model.StepKindPowerShell:
			shell = model.ShellPwsh
		default:
			shell = defaultShellFor(ectx.HostProcessPlatform)
		}
	}

	ext := scriptExtension(shell)
	path, cleanup, err := writeTempScript(ectx.WorkingDirectory, step.Script, ext)
	if err != nil {
		return failedResult(step.Name, started, fmt.Errorf("writing script file: %w", err))
	}
	defer cleanup()

	argv := shellInvocation(shell, path)
	return runCommand(ctx, step.Name, argv, ectx, runner)
}

func defaultShellFor(platform string) model.Shell {
	if platform == "windows" {
		return model.ShellPowerShell
	}
	return model.ShellBash
}

func scriptExtension(shell model.Shell) string {
	switch shell {
	case model.ShellPwsh, model.ShellPowerShell:
		return ".ps1"
	default:
		return ".sh"
	}
}

func shellInvocation(shell model.Shell, path string) []string {
	switch shell {
	case model.ShellPwsh:
		return []string{"pwsh", "-NoLogo", "-NonInteractive", "-File", path}
	case model.ShellPowerShell:
		return []string{"powershell", "-NoLogo", "-NonInteractive", "-File", path}
	default:
		return []string{"bash", path}
	}
}

func writeTempScript(dir, contents, ext string) (string, func(), error) {
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "pdk-step-*"+ext)
	if err != nil {
		return "", func() {}, err
	}
	if _, err := f.WriteString(contents); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", func() {}, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", func() {}, err
	}
	if runtime.GOOS != "windows" {
		_ = os.Chmod(f.Name(), 0o755)
	}
	name := f.Name()
	return name, func() { _ = os.Remove(name) }, nil
}
