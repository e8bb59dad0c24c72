// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package executor composes a concrete command invocation per step
// kind and drives it through a CommandRunner (pkg/executil.Runner's
// contract, reused unchanged — the docker runner supplies an
// exec-into-container implementation, the host runner uses
// executil.NewRunner() directly). Registry lookup is a total function
// from StepKind to Executor, a closed-sum design; an unregistered kind
// is a typed error rather than a panic.
package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pdk/pkg/executil"
	"pdk/pkg/model"
)

// ErrUnregisteredKind is returned by Registry.Get for a StepKind with
// no registered Executor.
type ErrUnregisteredKind struct {
	Kind model.StepKind
}

func (e *ErrUnregisteredKind) Error() string {
	return fmt.Sprintf("no executor registered for step kind %q", e.Kind)
}

// Executor turns one step into a concrete invocation and drives it
// through runner. It must never panic or return an error across this
// boundary: any internal failure is reported as a failed
// StepExecutionResult (success=false, exitCode=-1, message in
// ErrorOutput) so the job runner can always proceed to the next step
// or stop per ContinueOnError, uniformly.
type Executor interface {
	Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult

func (f ExecutorFunc) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	return f(ctx, step, ectx, runner)
}

// Registry maps StepKind to Executor, mirroring pkg/providers/backend.Registry's mutex-guarded map shape.
type Registry struct {
	mu        sync.RWMutex
	executors map[model.StepKind]Executor
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[model.StepKind]Executor)}
}

// NewDefaultRegistry constructs a Registry with every built-in executor
// registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(model.StepKindScript, scriptExecutor{})
	r.Register(model.StepKindBash, scriptExecutor{})
	r.Register(model.StepKindPowerShell, scriptExecutor{})
	r.Register(model.StepKindDotnet, dotnetExecutor{})
	r.Register(model.StepKindNpm, npmExecutor{})
	r.Register(model.StepKindMaven, mavenExecutor{})
	r.Register(model.StepKindGradle, gradleExecutor{})
	r.Register(model.StepKindPython, pythonExecutor{})
	r.Register(model.StepKindDocker, dockerExecutor{})
	r.Register(model.StepKindCheckout, checkoutExecutor{})
	r.Register(model.StepKindUploadArtifact, uploadArtifactExecutor{})
	r.Register(model.StepKindDownloadArtifact, downloadArtifactExecutor{})
	r.Register(model.StepKindFileOperation, fileOperationExecutor{})
	return r
}

// Register associates kind with e, overwriting any prior registration.
func (r *Registry) Register(kind model.StepKind, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[kind] = e
}

// Has reports whether kind has a registered Executor.
func (r *Registry) Has(kind model.StepKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[kind]
	return ok
}

// Get returns the Executor for kind, or ErrUnregisteredKind.
func (r *Registry) Get(kind model.StepKind) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[kind]
	if !ok {
		return nil, &ErrUnregisteredKind{Kind: kind}
	}
	return e, nil
}

// Kinds returns every registered StepKind in lexicographic order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return kinds
}

// Execute looks up the executor for step.Kind and runs it, converting
// an unregistered kind into the same failed-result shape every
// executor uses internally so callers have one contract regardless of
// whether the failure happened before or during dispatch.
func (r *Registry) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	started := time.Now()
	e, err := r.Get(step.Kind)
	if err != nil {
		return failedResult(step.Name, started, err)
	}
	return e.Execute(ctx, step, ectx, runner)
}

// failedResult builds the uniform failure shape the never-throw
// contract requires.
func failedResult(name string, started time.Time, err error) model.StepExecutionResult {
	ended := time.Now()
	return model.StepExecutionResult{
		Name:        name,
		Success:     false,
		ExitCode:    -1,
		ErrorOutput: err.Error(),
		StartedAt:   started,
		EndedAt:     ended,
		Duration:    ended.Sub(started),
	}
}

// runCommand is the shared dispatch path every executor below uses: it
// runs argv through runner in ectx's working directory/environment and
// converts the result into the uniform StepExecutionResult shape.
func runCommand(ctx context.Context, name string, argv []string, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	started := time.Now()
	if len(argv) == 0 {
		return failedResult(name, started, fmt.Errorf("no command composed for step"))
	}

	cmd := executil.Command{
		Name: argv[0],
		Args: argv[1:],
		Dir:  ectx.WorkingDirectory,
		Env:  ectx.Environment,
	}

	result, err := runner.Run(ctx, cmd)
	ended := time.Now()
	out := model.StepExecutionResult{
		Name:      name,
		StartedAt: started,
		EndedAt:   ended,
		Duration:  ended.Sub(started),
	}
	if result != nil {
		out.ExitCode = result.ExitCode
		out.Stdout = string(result.Stdout)
		out.Stderr = string(result.Stderr)
	} else {
		out.ExitCode = -1
	}
	if err != nil {
		out.Success = false
		out.ErrorOutput = err.Error()
		return out
	}
	out.Success = out.ExitCode == 0
	return out
}
