// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package docker runs a job's steps inside one long-lived container per
// job, using the Docker Engine API client directly rather than shelling
// out to the docker CLI. The container is created once per job and
// every step execs into it, so working-directory and filesystem state
// carry over between steps the same way they would on the host.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	"pdk/pkg/executil"
	"pdk/pkg/executor"
	"pdk/pkg/logging"
	"pdk/pkg/masker"
	"pdk/pkg/model"
	"pdk/pkg/parser"
	"pdk/pkg/progress"
	"pdk/pkg/runner"
)

// ErrInvalidImage is returned by ResolveImage when runsOn is neither a
// known runner label nor a syntactically valid
// [registry/]repository[:tag][@digest] image reference.
var ErrInvalidImage = errors.New("invalid image reference")

// DefaultTimeout is applied to a job with no explicit Timeout.
const DefaultTimeout = 30 * time.Minute

// containerWorkspace is the fixed in-container mount point; every step
// sees the same path regardless of the host-side workspace location.
const containerWorkspace = "/workspace"

// Config wires a Docker Runner's collaborators.
type Config struct {
	Client         *client.Client
	Executors      *executor.Registry
	Resolver       runner.Expander
	ContextUpdater ContextUpdater
	Masker         *masker.Masker
	Logger         logging.Logger
	Progress       progress.Reporter
	RunID          string
	HostWorkspace  string
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

// Runner executes a job's steps by exec-ing into one container for the
// whole job.
type Runner struct {
	cfg Config
}

// New builds a Docker Runner from cfg.
func New(cfg Config) *Runner {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.Progress == nil {
		cfg.Progress = progress.ReporterFunc(func(progress.Event) {})
	}
	return &Runner{cfg: cfg}
}

// Available probes whether a Docker daemon is reachable, for the
// host/docker/auto factory to fall back on.
func Available(ctx context.Context, cli *client.Client) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := cli.Ping(probeCtx)
	return err == nil
}

// ResolveImage maps a job's RunsOn hint onto a concrete Docker image.
// Known GitHub/Azure runner labels and "" map to a maintained base
// image; any other value is treated as a raw image reference and
// validated against the standard [registry/]repository[:tag][@digest]
// grammar before being passed through — a malformed value is rejected
// here rather than surfacing as an opaque ImagePull failure later.
func ResolveImage(runsOn string) (string, error) {
	switch strings.ToLower(runsOn) {
	case "", "ubuntu-latest", "ubuntu-22.04":
		return "ubuntu:22.04", nil
	case "ubuntu-20.04":
		return "ubuntu:20.04", nil
	case "windows-latest", "windows-2022":
		return "mcr.microsoft.com/windows/servercore:ltsc2022", nil
	case "macos-latest":
		return "ubuntu:22.04", nil // no Docker-hosted macOS image exists; closest POSIX approximation
	default:
		if _, err := reference.ParseNormalizedNamed(runsOn); err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidImage, runsOn, err)
		}
		return runsOn, nil
	}
}

func containerName(jobID string) string {
	return fmt.Sprintf("pdk-%s-%s", jobID, strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// RunJob implements pkg/runner.JobRunner.
func (r *Runner) RunJob(ctx context.Context, pipeline *model.Pipeline, job *model.Job) model.JobExecutionResult {
	result := model.JobExecutionResult{JobName: job.Name, JobID: job.ID, StartedAt: time.Now()}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	img, err := ResolveImage(job.RunsOn)
	if err != nil {
		result.ErrorMessage = err.Error()
		result.EndedAt = time.Now()
		return result
	}
	if err := r.pullImage(jobCtx, img); err != nil {
		result.ErrorMessage = fmt.Sprintf("pulling image %q: %v", img, err)
		result.EndedAt = time.Now()
		return result
	}

	name := containerName(job.ID)
	containerID, err := r.createAndStart(jobCtx, name, img, job)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("creating container: %v", err)
		result.EndedAt = time.Now()
		return result
	}
	defer r.removeContainer(containerID)

	if r.cfg.ContextUpdater != nil {
		r.cfg.ContextUpdater.UpdateContext(job.Name, "", "docker", containerWorkspace)
	}

	commands := &execRunner{client: r.cfg.Client, containerID: containerID}

	result.Steps = make([]model.StepExecutionResult, 0, len(job.Steps))
	for i, step := range job.Steps {
		r.cfg.Progress.Report(progress.Event{Kind: progress.StepStarted, JobID: job.ID, StepName: step.Name, StepIndex: i, Symbol: progress.SymbolRunning})

		if r.cfg.ContextUpdater != nil {
			r.cfg.ContextUpdater.UpdateContext(job.Name, step.Name, "docker", containerWorkspace)
		}

		if ref, ok := r.cfg.ActionRefs[job.ID+"/"+step.ID]; ok && r.cfg.Logger != nil {
			r.cfg.Logger.Info("resolved action reference",
				logging.NewField("step", step.Name),
				logging.NewField("uses", ref.Owner+"/"+ref.Repo+"@"+ref.Ref))
		}

		expanded := runner.ExpandStep(step, r.cfg.Resolver)
		ectx := &model.ExecutionContext{
			ContainerID:       containerID,
			WorkspaceHostPath: r.cfg.HostWorkspace,
			WorkspaceStepPath: containerWorkspace,
			Environment:       mergeEnv(job.Environment, expanded.Environment),
			WorkingDirectory:  workingDirectory(expanded),
			JobName:           job.Name,
			JobID:             job.ID,
			Runner:            "docker",
			Artifact: model.ArtifactContext{
				RunID:         r.cfg.RunID,
				SanitizedJob:  job.ID,
				SanitizedStep: expanded.Name,
				StepIndex:     i,
			},
		}

		stepResult := r.cfg.Executors.Execute(jobCtx, expanded, ectx, commands)
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

func (r *Runner) pullImage(ctx context.Context, img string) error {
	reader, err := r.cfg.Client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (r *Runner) createAndStart(ctx context.Context, name, img string, job *model.Job) (string, error) {
	exposed, bindings, err := nat.ParsePortSpecs(nil)
	if err != nil {
		return "", err
	}

	cfg := &container.Config{
		Image:        img,
		Cmd:          []string{"sleep", "infinity"},
		Env:          envSlice(withBuiltins(job.Environment, job.Name)),
		WorkingDir:   containerWorkspace,
		ExposedPorts: exposed,
		Tty:          false,
	}
	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		AutoRemove:   false,
	}
	if r.cfg.HostWorkspace != "" {
		hostCfg.Binds = []string{r.cfg.HostWorkspace + ":" + containerWorkspace}
	}

	created, err := r.cfg.Client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", err
	}
	if err := r.cfg.Client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("starting container: %w", err)
	}
	return created.ID, nil
}

func (r *Runner) removeContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.cfg.Client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil && r.cfg.Logger != nil {
		r.cfg.Logger.Warn("failed to remove job container", logging.NewField("containerId", containerID), logging.NewField("error", err.Error()))
	}
}

// withBuiltins layers the WORKSPACE/JOB_NAME/RUNNER built-ins under
// job's own environment, so a step script reading them with plain
// shell syntax (`$JOB_NAME`) sees the same values the resolver exposes
// through `${JOB_NAME}` — job-defined values still win on conflict.
func withBuiltins(env map[string]string, jobName string) map[string]string {
	out := map[string]string{
		"WORKSPACE": containerWorkspace,
		"JOB_NAME":  jobName,
		"RUNNER":    "docker",
	}
	for k, v := range env {
		out[k] = v
	}
	return out
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
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

func workingDirectory(step *model.Step) string {
	if step.WorkingDirectory == "" {
		return containerWorkspace
	}
	if strings.HasPrefix(step.WorkingDirectory, "/") {
		return step.WorkingDirectory
	}
	return containerWorkspace + "/" + step.WorkingDirectory
}
