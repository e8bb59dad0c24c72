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
	"path/filepath"
	"regexp"
	"time"

	"pdk/pkg/executil"
	"pdk/pkg/model"
)

// checkoutExecutor clones the step's configured repository into the
// workspace, or is a no-op when the local workspace already is the
// checkout (the common case for a developer running PDK against their
// own working tree).
type checkoutExecutor struct{}

func (checkoutExecutor) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	repo := step.With["repository"]
	if repo == "" {
		return model.StepExecutionResult{
			Name:      step.Name,
			Success:   true,
			ExitCode:  0,
			StartedAt: time.Now(),
			EndedAt:   time.Now(),
		}
	}

	ref := step.With["ref"]
	argv := []string{"git", "clone"}
	if ref != "" {
		argv = append(argv, "--branch", ref)
	}
	argv = append(argv, repo, ".")
	return runCommand(ctx, step.Name, argv, ectx, runner)
}

// sanitizePattern replaces any path-invalid character with an
// underscore so a job/step/artifact name is always safe to use as a
// directory component.
var sanitizePattern = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func sanitize(s string) string {
	if s == "" {
		return "_"
	}
	return sanitizePattern.ReplaceAllString(s, "_")
}

// artifactPath derives the deterministic on-disk artifact path:
// {workspace}/.pdk-artifacts/{runId}/{sanitizedJob}/{stepIndex}-{sanitizedStep}/{artifactName}.
func artifactPath(ectx *model.ExecutionContext, artifactName string) string {
	a := ectx.Artifact
	stepDir := fmt.Sprintf("%d-%s", a.StepIndex, sanitize(a.SanitizedStep))
	return filepath.Join(ectx.WorkspaceHostPath, ".pdk-artifacts", a.RunID, sanitize(a.SanitizedJob), stepDir, sanitize(artifactName))
}

// uploadArtifactExecutor copies a named path from the workspace into
// the deterministic artifact directory.
type uploadArtifactExecutor struct{}

func (uploadArtifactExecutor) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	started := time.Now()
	name := normalizeString(step.With["name"])
	source := normalizeString(step.With["path"])
	if err := requireNonEmpty("name", name); err != nil {
		return failedResult(step.Name, started, err)
	}
	if err := requireNonEmpty("path", source); err != nil {
		return failedResult(step.Name, started, err)
	}

	dest := artifactPath(ectx, name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return failedResult(step.Name, started, fmt.Errorf("preparing artifact directory: %w", err))
	}

	argv := []string{"cp", "-r", source, dest}
	return runCommand(ctx, step.Name, argv, ectx, runner)
}

// downloadArtifactExecutor copies a previously uploaded artifact out of
// the deterministic artifact directory and into the workspace.
type downloadArtifactExecutor struct{}

func (downloadArtifactExecutor) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	started := time.Now()
	name := normalizeString(step.With["name"])
	dest := normalizeString(step.With["path"])
	if err := requireNonEmpty("name", name); err != nil {
		return failedResult(step.Name, started, err)
	}
	if dest == "" {
		dest = "."
	}

	source := artifactPath(ectx, name)
	argv := []string{"cp", "-r", source, dest}
	return runCommand(ctx, step.Name, argv, ectx, runner)
}
