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
	"time"

	"pdk/pkg/executil"
	"pdk/pkg/model"
)

// Each toolchain executor below follows the same three-step shape pkg/engine/inputs.BuildInputs establishes: decode the
// step's `with:` map into a typed XxxInputs, Normalize() it, Validate()
// it, then compose the CLI invocation. Unknown `with:` keys are
// forwarded verbatim as PDK_INPUT_<KEY> environment variables rather
// than silently dropped.

func inputEnv(with map[string]string, consumed ...string) map[string]string {
	consumedSet := make(map[string]bool, len(consumed))
	for _, c := range consumed {
		consumedSet[c] = true
	}
	env := make(map[string]string)
	for k, v := range with {
		if consumedSet[k] {
			continue
		}
		env["PDK_INPUT_"+k] = v
	}
	return env
}

func mergeEnv(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// --- dotnet ------------------------------------------------------------------

type dotnetInputs struct {
	Command       string
	Project       string
	Configuration string
	Args          string
}

func (in *dotnetInputs) normalize() {
	in.Command = normalizeString(in.Command)
	in.Project = normalizeString(in.Project)
	in.Configuration = normalizeString(in.Configuration)
}

func (in *dotnetInputs) validate() error {
	return requireNonEmpty("command", in.Command)
}

func dotnetInputsFromWith(with map[string]string) dotnetInputs {
	in := dotnetInputs{
		Command:       with["command"],
		Project:       with["project"],
		Configuration: with["configuration"],
		Args:          with["args"],
	}
	if in.Command == "" {
		in.Command = "build"
	}
	return in
}

type dotnetExecutor struct{}

func (dotnetExecutor) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	in := dotnetInputsFromWith(step.With)
	in.normalize()
	if err := in.validate(); err != nil {
		return failedResult(step.Name, time.Now(), err)
	}

	argv := []string{"dotnet", in.Command}
	if in.Project != "" {
		argv = append(argv, in.Project)
	}
	if in.Configuration != "" {
		argv = append(argv, "--configuration", in.Configuration)
	}
	argv = append(argv, splitArgs(in.Args)...)

	runEctx := *ectx
	runEctx.Environment = mergeEnv(ectx.Environment, inputEnv(step.With, "command", "project", "configuration", "args"))
	return runCommand(ctx, step.Name, argv, &runEctx, runner)
}

// --- npm -----------------------------------------------------------------

type npmInputs struct {
	Command string
	Args    string
}

func npmInputsFromWith(with map[string]string) npmInputs {
	in := npmInputs{Command: with["command"], Args: with["args"]}
	if in.Command == "" {
		in.Command = "ci"
	}
	return in
}

type npmExecutor struct{}

func (npmExecutor) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	in := npmInputsFromWith(step.With)
	in.Command = normalizeString(in.Command)
	if err := requireNonEmpty("command", in.Command); err != nil {
		return failedResult(step.Name, time.Now(), err)
	}

	argv := append([]string{"npm", in.Command}, splitArgs(in.Args)...)
	runEctx := *ectx
	runEctx.Environment = mergeEnv(ectx.Environment, inputEnv(step.With, "command", "args"))
	return runCommand(ctx, step.Name, argv, &runEctx, runner)
}

// --- maven -----------------------------------------------------------------

type mavenInputs struct {
	Goals string
	Args  string
}

func mavenInputsFromWith(with map[string]string) mavenInputs {
	in := mavenInputs{Goals: with["goals"], Args: with["args"]}
	if in.Goals == "" {
		in.Goals = "package"
	}
	return in
}

type mavenExecutor struct{}

func (mavenExecutor) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	in := mavenInputsFromWith(step.With)
	in.Goals = normalizeString(in.Goals)
	if err := requireNonEmpty("goals", in.Goals); err != nil {
		return failedResult(step.Name, time.Now(), err)
	}

	argv := append([]string{"mvn"}, splitArgs(in.Goals)...)
	argv = append(argv, splitArgs(in.Args)...)
	runEctx := *ectx
	runEctx.Environment = mergeEnv(ectx.Environment, inputEnv(step.With, "goals", "args"))
	return runCommand(ctx, step.Name, argv, &runEctx, runner)
}

// --- gradle -----------------------------------------------------------------

type gradleInputs struct {
	Tasks string
	Args  string
}

func gradleInputsFromWith(with map[string]string) gradleInputs {
	in := gradleInputs{Tasks: with["tasks"], Args: with["args"]}
	if in.Tasks == "" {
		in.Tasks = "build"
	}
	return in
}

type gradleExecutor struct{}

func (gradleExecutor) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	in := gradleInputsFromWith(step.With)
	in.Tasks = normalizeString(in.Tasks)
	if err := requireNonEmpty("tasks", in.Tasks); err != nil {
		return failedResult(step.Name, time.Now(), err)
	}

	argv := append([]string{"./gradlew"}, splitArgs(in.Tasks)...)
	argv = append(argv, splitArgs(in.Args)...)
	runEctx := *ectx
	runEctx.Environment = mergeEnv(ectx.Environment, inputEnv(step.With, "tasks", "args"))
	return runCommand(ctx, step.Name, argv, &runEctx, runner)
}

// --- python -----------------------------------------------------------------

type pythonInputs struct {
	Script string
	Args   string
}

func pythonInputsFromWith(with map[string]string) pythonInputs {
	return pythonInputs{Script: with["script"], Args: with["args"]}
}

type pythonExecutor struct{}

func (pythonExecutor) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	in := pythonInputsFromWith(step.With)
	in.Script = normalizeString(in.Script)
	if err := requireNonEmpty("script", in.Script); err != nil {
		return failedResult(step.Name, time.Now(), err)
	}

	argv := append([]string{"python3", in.Script}, splitArgs(in.Args)...)
	runEctx := *ectx
	runEctx.Environment = mergeEnv(ectx.Environment, inputEnv(step.With, "script", "args"))
	return runCommand(ctx, step.Name, argv, &runEctx, runner)
}

// --- docker (in-job CLI step, distinct from the job-level container
// lifecycle pkg/runner/docker manages) -----------------------------------

type dockerInputs struct {
	Action     string // build | push | run
	Image      string
	Dockerfile string
	Context    string
}

func dockerInputsFromWith(with map[string]string) dockerInputs {
	in := dockerInputs{
		Action:     with["action"],
		Image:      with["image"] ,
		Dockerfile: with["dockerfile"],
		Context:    with["context"],
	}
	if in.Action == "" {
		in.Action = "build"
	}
	if in.Dockerfile == "" {
		in.Dockerfile = "Dockerfile"
	}
	if in.Context == "" {
		in.Context = "."
	}
	return in
}

type dockerExecutor struct{}

func (dockerExecutor) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	in := dockerInputsFromWith(step.With)
	in.Image = normalizeString(in.Image)
	if err := requireNonEmpty("image", in.Image); err != nil {
		return failedResult(step.Name, time.Now(), err)
	}

	var argv []string
	switch in.Action {
	case "push":
		argv = []string{"docker", "push", in.Image}
	case "run":
		argv = []string{"docker", "run", "--rm", in.Image}
	default:
		argv = []string{"docker", "build", "-f", in.Dockerfile, "-t", in.Image, in.Context}
	}

	runEctx := *ectx
	runEctx.Environment = mergeEnv(ectx.Environment, inputEnv(step.With, "action", "image", "dockerfile", "context"))
	return runCommand(ctx, step.Name, argv, &runEctx, runner)
}

// --- file operation ----------------------------------------------------------

type fileOperationExecutor struct{}

func (fileOperationExecutor) Execute(ctx context.Context, step *model.Step, ectx *model.ExecutionContext, runner executil.Runner) model.StepExecutionResult {
	op := normalizeString(step.With["operation"])
	src := normalizeString(step.With["source"])
	dst := normalizeString(step.With["destination"])

	var argv []string
	switch op {
	case "copy":
		argv = []string{"cp", "-r", src, dst}
	case "move":
		argv = []string{"mv", src, dst}
	case "delete":
		argv = []string{"rm", "-rf", src}
	default:
		return failedResult(step.Name, time.Now(), fmt.Errorf("unknown file operation %q", op))
	}
	return runCommand(ctx, step.Name, argv, ectx, runner)
}
