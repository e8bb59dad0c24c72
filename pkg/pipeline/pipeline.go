// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package pipeline wires together parsing, validation, variable
// resolution, filtering, planning, and execution into the single
// entry point the CLI (and any other front end) calls to run a
// pipeline file end to end.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	dockerclient "github.com/docker/docker/client"

	"pdk/pkg/config"
	"pdk/pkg/executor"
	"pdk/pkg/filter"
	"pdk/pkg/logging"
	"pdk/pkg/masker"
	"pdk/pkg/model"
	"pdk/pkg/parser"
	"pdk/pkg/parser/azure"
	"pdk/pkg/parser/github"
	"pdk/pkg/planner"
	"pdk/pkg/progress"
	"pdk/pkg/runner"
	"pdk/pkg/runner/docker"
	"pdk/pkg/runner/host"
	"pdk/pkg/secrets"
	"pdk/pkg/validate"
	"pdk/pkg/variables"
)

// Options configures one Run invocation. Only PipelinePath is required;
// everything else falls back to a documented default.
type Options struct {
	PipelinePath string
	Config       config.Config
	RunnerMode   runner.Mode // overrides Config.Runner when non-empty
	Preset       string      // name of a Config.Presets entry to apply
	SkipSteps    []string    // additional ad-hoc skip-by-name, ANDed with Preset
	Variables    map[string]string
	Secrets      secrets.Manager
	Logger       logging.Logger
	Progress     progress.Reporter
	Environ      []string // os.Environ()-shaped; defaults to os.Environ()
	Workspace    string   // fixed host workspace; empty means a per-run temp dir
}

// Result is the aggregate outcome of running every planned job.
type Result struct {
	Success bool
	Jobs    []model.JobExecutionResult
}

// Run parses, validates, plans, and executes the pipeline at
// opts.PipelinePath, returning once every job has run (or the first
// non-continuable job failure stops the schedule).
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(false)
	}

	contents, err := os.ReadFile(opts.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline file: %w", err)
	}

	factory := parser.NewFactory()
	factory.Register(github.New())
	factory.Register(azure.New())

	parsed, err := factory.Parse(opts.PipelinePath, contents)
	if err != nil {
		return nil, fmt.Errorf("parsing pipeline: %w", err)
	}

	applyProviderMetadata(parsed.Pipeline, parsed.Meta, logger)
	expandMatrix(parsed.Pipeline, parsed.Meta)
	actionRefs := buildActionRefIndex(parsed.Meta)

	executors := executor.NewDefaultRegistry()

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}

	resolver := variables.NewResolver()
	resolver.SetConfig(opts.Config.Variables)
	resolver.LoadEnvironment(environ)
	resolver.SetPipelineVariables(parsed.Pipeline.Variables)
	for name, value := range opts.Variables {
		resolver.SetVariable(name, value, variables.SourceCLIOverride)
	}

	validator := validate.New(executors, resolver)
	report := validator.Validate(parsed.Pipeline)
	if report.HasFatal() {
		for _, issue := range report.Issues {
			logger.Error(issue.String())
		}
		return nil, fmt.Errorf("pipeline validation failed with %d issue(s)", len(report.Issues))
	}
	for _, issue := range report.Issues {
		logger.Warn(issue.String())
	}

	stepFilter, err := buildFilter(opts)
	if err != nil {
		return nil, err
	}

	plan, err := planner.Plan(parsed.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("planning execution order: %w", err)
	}

	maskerInst := masker.New()
	maskerInst.SetEnabled(opts.Config.Masking.IsEnabled())
	if opts.Secrets != nil {
		if values, err := opts.Secrets.GetAll(); err == nil {
			for _, v := range values {
				maskerInst.Register(v)
			}
		}
	}
	for _, v := range config.Secrets(environ) {
		maskerInst.Register(v)
	}

	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.NewCoalescer(progress.NewConsoleReporter(os.Stdout), progress.ModeNormal)
	}

	mode := opts.RunnerMode
	if mode == "" {
		mode = opts.Config.Runner
	}

	inner, err := buildRunner(ctx, mode, executors, resolver, maskerInst, logger, reporter, actionRefs, opts)
	if err != nil {
		return nil, err
	}
	jobRunner := runner.NewFilteringDecorator(inner, stepFilter)

	result := &Result{Success: true}
	for _, job := range plan.Jobs {
		jobResult := jobRunner.RunJob(ctx, parsed.Pipeline, job)
		result.Jobs = append(result.Jobs, jobResult)
		if !jobResult.Success {
			result.Success = false
			break
		}
	}
	return result, nil
}

func buildFilter(opts Options) (filter.Filter, error) {
	var filters []filter.Filter
	if opts.Preset != "" {
		presets := filter.NewPresetRegistry()
		for name, p := range opts.Config.Presets {
			presets.Register(name, p)
		}
		f, err := presets.Get(opts.Preset)
		if err != nil {
			return nil, fmt.Errorf("resolving preset %q: %w", opts.Preset, err)
		}
		filters = append(filters, f)
	}
	if len(opts.SkipSteps) > 0 {
		filters = append(filters, filter.SkipByName(opts.SkipSteps...))
	}
	if len(filters) == 0 {
		return nil, nil
	}
	return filter.Composite(filters...), nil
}

func buildRunner(
	ctx context.Context,
	mode runner.Mode,
	executors *executor.Registry,
	resolver *variables.Resolver,
	maskerInst *masker.Masker,
	logger logging.Logger,
	reporter progress.Reporter,
	actionRefs map[string]parser.ActionRef,
	opts Options,
) (runner.JobRunner, error) {
	var cli *dockerclient.Client
	if mode != runner.ModeHost {
		if c, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation()); err == nil {
			cli = c
		}
	}

	resolved, err := runner.Resolve(ctx, mode, cli, docker.Available, logger)
	if err != nil {
		return nil, fmt.Errorf("resolving runner mode: %w", err)
	}

	switch resolved {
	case runner.ModeDocker:
		return docker.New(docker.Config{
			Client:         cli,
			Executors:      executors,
			Resolver:       resolver,
			ContextUpdater: resolver,
			Masker:         maskerInst,
			Logger:         logger,
			Progress:       reporter,
			HostWorkspace:  opts.Workspace,
			DefaultTimeout: 30 * time.Minute,
			ActionRefs:     actionRefs,
		}), nil
	default:
		return host.New(host.Config{
			Executors:      executors,
			Resolver:       resolver,
			ContextUpdater: resolver,
			Masker:         maskerInst,
			Logger:         logger,
			Progress:       reporter,
			Workspace:      opts.Workspace,
			DefaultTimeout: host.DefaultTimeout,
			ActionRefs:     actionRefs,
		}), nil
	}
}

// applyProviderMetadata wires the parser's side-channel ParsedJobMeta
// into the model before planning: a job-level `container:` override
// takes precedence over `runs-on` for image selection (both just set
// Job.RunsOn, which docker.ResolveImage already treats as a raw image
// when it isn't a known runner label), and a job declaring sibling
// `services:` gets a one-time warning since PDK's container manager
// only ever manages one container per job.
func applyProviderMetadata(p *model.Pipeline, meta map[string]*parser.ParsedJobMeta, logger logging.Logger) {
	for _, job := range p.OrderedJobs() {
		jm := meta[job.ID]
		if jm == nil {
			continue
		}
		if jm.Container != "" {
			job.RunsOn = jm.Container
		}
		if len(jm.Services) > 0 && logger != nil {
			logger.Warn("job declares sibling service containers, which this runner does not provision; steps will run without them",
				logging.NewField("job", job.ID), logging.NewField("services", jm.Services))
		}
	}
}

// buildActionRefIndex flattens every parsed `uses:` reference into a
// single jobID+"/"+stepID keyed map so the runner can log the
// resolved action reference at step-start without needing to carry
// the whole per-job ParsedJobMeta through its Config.
func buildActionRefIndex(meta map[string]*parser.ParsedJobMeta) map[string]parser.ActionRef {
	index := make(map[string]parser.ActionRef)
	for jobID, jm := range meta {
		if jm == nil {
			continue
		}
		for _, ref := range jm.Actions {
			if ref.StepID == "" {
				continue
			}
			index[jobID+"/"+ref.StepID] = ref
		}
	}
	return index
}
