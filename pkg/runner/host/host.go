// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package host runs a job's steps directly on the developer's machine,
// one process per step, using the pkg/executil.Runner contract.
package host

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"pdk/pkg/executil"
	"pdk/pkg/executor"
	"pdk/pkg/logging"
	"pdk/pkg/masker"
	"pdk/pkg/model"
	"pdk/pkg/parser"
	"pdk/pkg/progress"
	"pdk/pkg/runner"
)

// DefaultTimeout is applied to a job with no explicit Timeout.
const DefaultTimeout = 30 * time.Minute

// Config wires a host Runner's collaborators.
type Config struct {
	Executors      *executor.Registry
	Resolver       runner.Expander
	ContextUpdater ContextUpdater
	Masker         *masker.Masker
	Logger         logging.Logger
	Progress       progress.Reporter
	RunID          string
	Workspace      string // fixed workspace path; "" creates a per-job temp dir
	DefaultTimeout time.Duration
	// ActionRefs, when non-nil, is consulted at step-start (keyed by
	// jobID+"/"+stepID) to log the resolved `uses:` action reference a
	// GitHub Actions step was parsed from.
	ActionRefs map[string]parser.ActionRef
}

// ContextUpdater rebinds the resolver's WORKSPACE/JOB_NAME/STEP_NAME/
// RUNNER builtins between steps; pkg/variables.Resolver satisfies this.
type ContextUpdater interface {
	UpdateContext(jobName, stepName, runnerName, workspace string)
}

// Runner executes a job's steps sequentially on the host.
type Runner struct {
	cfg      Config
	commands executil.Runner
	warnOnce sync.Once
}

// New builds a host Runner from cfg, defaulting Progress to a no-op
// reporter and DefaultTimeout to 30 minutes when unset.
func New(cfg Config) *Runner {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.Progress == nil {
		cfg.Progress = progress.ReporterFunc(func(progress.Event) {})
	}
	return &Runner{cfg: cfg, commands: executil.NewRunner()}
}

func (r *Runner) warnInsecure() {
	if r.cfg.Logger != nil {
		r.cfg.Logger.Warn("host runner executes pipeline steps directly on this machine with no container isolation; only run pipelines you trust")
	}
}

// RunJob implements pkg/runner.JobRunner.
func (r *Runner) RunJob(ctx context.Context, pipeline *model.Pipeline, job *model.Job) model.JobExecutionResult {
	r.warnOnce.Do(r.warnInsecure)

	result := model.JobExecutionResult{JobName: job.Name, JobID: job.ID, StartedAt: time.Now()}

	workspace := r.cfg.Workspace
	cleanup := func() {}
	if workspace == "" {
		dir, err := os.MkdirTemp("", "pdk-host-*")
		if err != nil {
			result.ErrorMessage = fmt.Sprintf("creating workspace: %v", err)
			result.EndedAt = time.Now()
			return result
		}
		workspace = dir
		cleanup = func() { _ = os.RemoveAll(dir) }
	}
	defer cleanup()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if r.cfg.ContextUpdater != nil {
		r.cfg.ContextUpdater.UpdateContext(job.Name, "", "host", workspace)
	}

	result.Steps = make([]model.StepExecutionResult, 0, len(job.Steps))
	for i, step := range job.Steps {
		r.cfg.Progress.Report(progress.Event{Kind: progress.StepStarted, JobID: job.ID, StepName: step.Name, StepIndex: i, Symbol: progress.SymbolRunning})

		if r.cfg.ContextUpdater != nil {
			r.cfg.ContextUpdater.UpdateContext(job.Name, step.Name, "host", workspace)
		}

		if ref, ok := r.cfg.ActionRefs[job.ID+"/"+step.ID]; ok && r.cfg.Logger != nil {
			r.cfg.Logger.Info("resolved action reference",
				logging.NewField("step", step.Name),
				logging.NewField("uses", ref.Owner+"/"+ref.Repo+"@"+ref.Ref))
		}

		expanded := runner.ExpandStep(step, r.cfg.Resolver)
		ectx := &model.ExecutionContext{
			HostProcessPlatform: runtime.GOOS,
			WorkspaceHostPath:   workspace,
			WorkspaceStepPath:   workspace,
			Environment:         mergeEnv(job.Environment, expanded.Environment),
			WorkingDirectory:    workingDirectory(workspace, expanded),
			JobName:             job.Name,
			JobID:               job.ID,
			Runner:              "host",
			Artifact: model.ArtifactContext{
				RunID:         r.cfg.RunID,
				SanitizedJob:  job.ID,
				SanitizedStep: expanded.Name,
				StepIndex:     i,
			},
		}

		stepResult := r.cfg.Executors.Execute(jobCtx, expanded, ectx, r.commands)
		if r.cfg.Masker != nil {
			stepResult.Stdout = r.cfg.Masker.Mask(stepResult.Stdout)
			stepResult.Stderr = r.cfg.Masker.Mask(stepResult.Stderr)
			stepResult.ErrorOutput = r.cfg.Masker.Mask(stepResult.ErrorOutput)
		}
		result.Steps = append(result.Steps, stepResult)

		symbol := progress.SymbolSuccess
		if !stepResult.Success {
			symbol = progress.SymbolFailure
		}
		r.cfg.Progress.Report(progress.Event{Kind: progress.StepCompleted, JobID: job.ID, StepName: step.Name, StepIndex: i, Symbol: symbol})

		if !stepResult.Success && !step.ContinueOnError {
			break
		}
	}

	result.EndedAt = time.Now()
	result.ComputeSuccess(job.Steps)
	return result
}

func mergeEnv(job, step map[string]string) map[string]string {
	out := make(map[string]string, len(job)+len(step))
	for k, v := range job {
		out[k] = v
	}
	for k, v := range step {
		out[k] = v
	}
	return out
}

func workingDirectory(workspace string, step *model.Step) string {
	if step.WorkingDirectory == "" {
		return workspace
	}
	if os.IsPathSeparator(step.WorkingDirectory[0]) {
		return step.WorkingDirectory
	}
	return workspace + string(os.PathSeparator) + step.WorkingDirectory
}
