// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine that normalizes GitHub Actions
and Azure DevOps YAML into a common model and executes it locally.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package model defines the provider-neutral pipeline graph: pipelines,
// jobs, steps, and the execution artifacts the runner produces while
// driving them.
package model

import "time"

// Provider identifies which vendor YAML a Pipeline was translated from.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderAzure  Provider = "azure"
)

// Pipeline is the normalized common model of one CI/CD definition.
//
// Jobs preserves insertion order for deterministic planning tie-breaks;
// callers must not rely on Go map iteration order, so JobOrder is kept
// alongside Jobs.
type Pipeline struct {
	Name      string
	Provider  Provider
	Jobs      map[string]*Job
	JobOrder  []string
	Variables map[string]string
}

// AddJob appends a job to the pipeline, recording insertion order.
func (p *Pipeline) AddJob(j *Job) {
	if p.Jobs == nil {
		p.Jobs = make(map[string]*Job)
	}
	if _, exists := p.Jobs[j.ID]; !exists {
		p.JobOrder = append(p.JobOrder, j.ID)
	}
	p.Jobs[j.ID] = j
}

// OrderedJobs returns jobs in insertion order.
func (p *Pipeline) OrderedJobs() []*Job {
	jobs := make([]*Job, 0, len(p.JobOrder))
	for _, id := range p.JobOrder {
		if j, ok := p.Jobs[id]; ok {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

// Job is a named unit with an ordered step sequence and dependency edges.
type Job struct {
	ID          string
	Name        string
	RunsOn      string // e.g. "ubuntu-latest", a raw image, or "host"
	Steps       []*Step
	DependsOn   []string
	Environment map[string]string
	Condition   string
	Timeout     time.Duration
}

// StepKind is the closed sum of step variants PDK understands.
type StepKind string

const (
	StepKindScript           StepKind = "Script"
	StepKindBash             StepKind = "Bash"
	StepKindPowerShell       StepKind = "PowerShell"
	StepKindCheckout         StepKind = "Checkout"
	StepKindDotnet           StepKind = "Dotnet"
	StepKindNpm              StepKind = "Npm"
	StepKindDocker           StepKind = "Docker"
	StepKindPython           StepKind = "Python"
	StepKindMaven            StepKind = "Maven"
	StepKindGradle           StepKind = "Gradle"
	StepKindFileOperation    StepKind = "FileOperation"
	StepKindUploadArtifact   StepKind = "UploadArtifact"
	StepKindDownloadArtifact StepKind = "DownloadArtifact"
	StepKindUnknown          StepKind = "Unknown"
)

// Shell is an explicit shell hint for Script/Bash/PowerShell steps.
type Shell string

const (
	ShellBash           Shell = "bash"
	ShellPwsh           Shell = "pwsh"
	ShellPowerShell     Shell = "powershell"
	ShellPlatformDefault Shell = ""
)

// Step is the atomic executable within a job.
type Step struct {
	ID               string
	Name             string
	Kind             StepKind
	Script           string
	Shell            Shell
	With             map[string]string
	Environment      map[string]string
	ContinueOnError  bool
	Condition        string
	WorkingDirectory string
}

// HasScriptPayload reports whether Script carries content.
func (s *Step) HasScriptPayload() bool { return s.Script != "" }

// HasStructuredPayload reports whether With carries structured inputs.
func (s *Step) HasStructuredPayload() bool { return len(s.With) > 0 }

// ArtifactContext is the tuple used to derive deterministic artifact
// paths and unique per-step resource names from a running step.
type ArtifactContext struct {
	RunID           string
	SanitizedJob    string
	SanitizedStep   string
	StepIndex       int
}

// ExecutionContext bundles the environment for one step execution. It
// is produced by the runner and must never be mutated by executors.
type ExecutionContext struct {
	ContainerID       string // set in Docker mode, empty otherwise
	HostProcessPlatform string // set in host mode: "windows", "linux", "darwin", "unknown"
	WorkspaceHostPath string
	WorkspaceStepPath string // path as visible to the step (e.g. /workspace in-container)
	Environment       map[string]string
	WorkingDirectory  string
	JobName           string
	JobID             string
	Runner            string
	Artifact          ArtifactContext
}

// StepExecutionResult is returned by every step executor.
type StepExecutionResult struct {
	Name      string
	Success   bool
	ExitCode  int
	Stdout    string
	Stderr    string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
	ErrorOutput string
}

// JobExecutionResult aggregates step results for one job run.
type JobExecutionResult struct {
	JobName      string
	JobID        string
	Success      bool
	ErrorMessage string
	Steps        []StepExecutionResult
	StartedAt    time.Time
	EndedAt      time.Time
}

// ComputeSuccess sets Success to the AND of every non-ContinueOnError
// step's success. Steps that were allowed to fail (continueOnError)
// never veto job success.
func (r *JobExecutionResult) ComputeSuccess(steps []*Step) {
	r.Success = true
	for i, res := range r.Steps {
		if i >= len(steps) {
			break
		}
		if !res.Success && !steps[i].ContinueOnError {
			r.Success = false
			return
		}
	}
}
