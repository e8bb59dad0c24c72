// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package azure translates Azure DevOps pipeline YAML into PDK's common
// pipeline model. The multi-stage/single-stage/simple hierarchy handling
// and the `$(NAME)` → `${NAME}` rewrite follow the reference Azure
// Pipelines shapes surfaced in the pack (see DESIGN.md); the yaml.Node
// polymorphic-field approach follows psa-act's workflow model and is
// reused here for `pool`, `variables`, and per-step payload fields.
package azure

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pdk/pkg/model"
	"pdk/pkg/parser"
)

func minutesToDuration(m int64) time.Duration {
	return time.Duration(m) * time.Minute
}

// Parser implements parser.Parser for Azure DevOps pipeline files.
type Parser struct{}

// New constructs an Azure DevOps Parser.
func New() *Parser { return &Parser{} }

// ID implements parser.Parser.
func (p *Parser) ID() string { return "azure" }

// CanParse implements parser.Parser. An Azure pipeline is recognized by
// one of its distinctive markers: a top-level `pool:`, a top-level
// `stages:`, or any `task:` carrying an `@version` qualifier.
func (p *Parser) CanParse(path string, contents []byte) bool {
	lower := strings.ToLower(path)
	if !strings.HasSuffix(lower, ".yml") && !strings.HasSuffix(lower, ".yaml") {
		return false
	}

	var raw rawPipeline
	if err := yaml.Unmarshal(contents, &raw); err != nil {
		return false
	}
	if raw.Pool.Kind != 0 || len(raw.Stages) > 0 {
		return true
	}
	for _, step := range allSteps(raw) {
		if step.Task != "" && strings.Contains(step.Task, "@") {
			return true
		}
	}
	return false
}

// --- intermediate provider shape -------------------------------------------------

type rawPipeline struct {
	Pool      yaml.Node      `yaml:"pool"`
	Variables yaml.Node      `yaml:"variables"`
	Stages    []rawStage     `yaml:"stages"`
	Jobs      []rawJob       `yaml:"jobs"`
	Steps     []rawStep      `yaml:"steps"`
}

type rawStage struct {
	Stage     string     `yaml:"stage"`
	DependsOn yaml.Node  `yaml:"dependsOn"`
	Condition string     `yaml:"condition"`
	Pool      yaml.Node  `yaml:"pool"`
	Jobs      []rawJob   `yaml:"jobs"`
}

type rawJob struct {
	Job              string            `yaml:"job"`
	DependsOn        yaml.Node         `yaml:"dependsOn"`
	Condition        string            `yaml:"condition"`
	Pool             yaml.Node         `yaml:"pool"`
	TimeoutInMinutes int64             `yaml:"timeoutInMinutes"`
	Variables        yaml.Node         `yaml:"variables"`
	Steps            []rawStep         `yaml:"steps"`
}

type rawStep struct {
	Task             string            `yaml:"task"`
	Bash             string            `yaml:"bash"`
	Pwsh             string            `yaml:"pwsh"`
	PowerShell       string            `yaml:"powershell"`
	Script           string            `yaml:"script"`
	Checkout         string            `yaml:"checkout"`
	DisplayName      string            `yaml:"displayName"`
	Inputs           map[string]any    `yaml:"inputs"`
	Env              map[string]string `yaml:"env"`
	Condition        string            `yaml:"condition"`
	ContinueOnError  bool              `yaml:"continueOnError"`
	WorkingDirectory string            `yaml:"workingDirectory"`
}

func allSteps(raw rawPipeline) []rawStep {
	steps := append([]rawStep{}, raw.Steps...)
	for _, j := range raw.Jobs {
		steps = append(steps, j.Steps...)
	}
	for _, s := range raw.Stages {
		for _, j := range s.Jobs {
			steps = append(steps, j.Steps...)
		}
	}
	return steps
}

// dollarParenVar matches Azure's $(NAME) variable syntax.
var dollarParenVar = regexp.MustCompile(`\$\(([^)]+)\)`)

// rewriteVars normalizes Azure's $(NAME) to the canonical ${NAME}. This
// is the single point where provider variable syntax is normalized; the
// expander downstream only ever sees ${NAME}.
func rewriteVars(s string) string {
	if s == "" {
		return s
	}
	return dollarParenVar.ReplaceAllString(s, "${$1}")
}

func rewriteVarsMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = rewriteVars(v)
	}
	return out
}

// poolImage resolves a pool node to a runner image/pool name. vmImage
// takes precedence over name when both are present.
func poolImage(node yaml.Node) (string, bool) {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		if node.Decode(&v) == nil && v != "" {
			return v, true
		}
	case yaml.MappingNode:
		var v struct {
			Name    string `yaml:"name"`
			VMImage string `yaml:"vmImage"`
		}
		if node.Decode(&v) == nil {
			if v.VMImage != "" {
				return v.VMImage, true
			}
			if v.Name != "" {
				return v.Name, true
			}
		}
	}
	return "", false
}

// unifyVariables normalizes Azure's mapping-or-list variables form into
// a name→value map. List entries carrying `group:` are references and
// are not resolvable here; they are preserved as empty-valued entries
// under their group key so callers can see they exist.
func unifyVariables(node yaml.Node) map[string]string {
	out := map[string]string{}
	switch node.Kind {
	case yaml.MappingNode:
		var m map[string]string
		if node.Decode(&m) == nil {
			for k, v := range m {
				out[k] = rewriteVars(v)
			}
		}
	case yaml.SequenceNode:
		var entries []map[string]string
		if node.Decode(&entries) == nil {
			for _, e := range entries {
				if name, ok := e["name"]; ok {
					out[name] = rewriteVars(e["value"])
				} else if group, ok := e["group"]; ok {
					out[group] = ""
				}
			}
		}
	}
	return out
}

// dependsOnList decodes a dependsOn node, treating both an explicit
// empty list and an absent node as "no declared dependency" —
// identically; both are resolved to "runs after the previous
// stage/job in source order" by the caller, not here.
func dependsOnList(node yaml.Node) []string {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		if node.Decode(&v) == nil && v != "" {
			return []string{v}
		}
	case yaml.SequenceNode:
		var v []string
		if node.Decode(&v) == nil {
			return v
		}
	}
	return nil
}

// taskKindTable is the closed mapping from an Azure task name (before
// the `@version` split) to a common StepKind.
var taskKindTable = map[string]model.StepKind{
	"DotNetCoreCLI":    model.StepKindDotnet,
	"DotNetCoreCLI@2":  model.StepKindDotnet,
	"PowerShell":       model.StepKindPowerShell,
	"Bash":             model.StepKindBash,
	"CmdLine":          model.StepKindScript,
	"Docker":           model.StepKindDocker,
	"Npm":              model.StepKindNpm,
	"PythonScript":     model.StepKindPython,
	"Maven":            model.StepKindMaven,
	"Gradle":           model.StepKindGradle,
	"DownloadPipelineArtifact": model.StepKindDownloadArtifact,
	"PublishPipelineArtifact":  model.StepKindUploadArtifact,
	"PublishBuildArtifacts":    model.StepKindUploadArtifact,
	"CopyFiles":                model.StepKindFileOperation,
	"DeleteFiles":              model.StepKindFileOperation,
}

func classifyTask(task string) model.StepKind {
	name, _, _ := strings.Cut(task, "@")
	if kind, ok := taskKindTable[task]; ok {
		return kind
	}
	if kind, ok := taskKindTable[name]; ok {
		return kind
	}
	return model.StepKindUnknown
}

// mapStep translates one Azure step, enforcing the exactly-one-of
// task/bash/pwsh/powershell/script/checkout payload rule and applying
// the $(NAME)→${NAME} rewrite to every string field.
func mapStep(index int, rs rawStep) (*model.Step, error) {
	payloads := 0
	if rs.Task != "" {
		payloads++
	}
	if rs.Bash != "" {
		payloads++
	}
	if rs.Pwsh != "" {
		payloads++
	}
	if rs.PowerShell != "" {
		payloads++
	}
	if rs.Script != "" {
		payloads++
	}
	if rs.Checkout != "" {
		payloads++
	}
	if payloads != 1 {
		return nil, fmt.Errorf("step %d must have exactly one of task/bash/pwsh/powershell/script/checkout, found %d", index, payloads)
	}

	step := &model.Step{
		Name:             rs.DisplayName,
		Environment:      rewriteVarsMap(rs.Env),
		ContinueOnError:  rs.ContinueOnError,
		Condition:        rewriteVars(rs.Condition),
		WorkingDirectory: rewriteVars(rs.WorkingDirectory),
	}

	switch {
	case rs.Task != "":
		step.Kind = classifyTask(rs.Task)
		step.With = make(map[string]string, len(rs.Inputs))
		for k, v := range rs.Inputs {
			step.With[k] = rewriteVars(fmt.Sprint(v))
		}
		if step.Name == "" {
			step.Name = rs.Task
		}
	case rs.Bash != "":
		step.Kind = model.StepKindBash
		step.Script = rewriteVars(rs.Bash)
		step.Shell = model.ShellBash
	case rs.Pwsh != "":
		step.Kind = model.StepKindPowerShell
		step.Script = rewriteVars(rs.Pwsh)
		step.Shell = model.ShellPwsh
	case rs.PowerShell != "":
		step.Kind = model.StepKindPowerShell
		step.Script = rewriteVars(rs.PowerShell)
		step.Shell = model.ShellPowerShell
	case rs.Script != "":
		step.Kind = model.StepKindScript
		step.Script = rewriteVars(rs.Script)
	case rs.Checkout != "":
		step.Kind = model.StepKindCheckout
		step.With = map[string]string{"checkout": rs.Checkout}
	}

	if step.Name == "" {
		step.Name = fmt.Sprintf("step-%d", index)
	}
	return step, nil
}

// Parse implements parser.Parser.
func (p *Parser) Parse(path string, contents []byte) (*parser.ParseResult, error) {
	var raw rawPipeline
	if err := yaml.Unmarshal(contents, &raw); err != nil {
		return nil, &parser.ParseError{File: path, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	shapes := 0
	if len(raw.Stages) > 0 {
		shapes++
	}
	if len(raw.Jobs) > 0 {
		shapes++
	}
	if len(raw.Steps) > 0 {
		shapes++
	}
	if shapes != 1 {
		return nil, &parser.ParseError{File: path, Message: fmt.Sprintf("pipeline must use exactly one of stages/jobs/steps hierarchy shapes, found %d", shapes)}
	}

	pipelinePool, _ := poolImage(raw.Pool)
	if pipelinePool == "" {
		pipelinePool = "ubuntu-latest"
	}

	pipeline := &model.Pipeline{
		Name:      path,
		Provider:  model.ProviderAzure,
		Variables: unifyVariables(raw.Variables),
	}
	meta := map[string]*parser.ParsedJobMeta{}

	switch {
	case len(raw.Stages) > 0:
		if err := buildMultiStage(path, pipeline, meta, raw, pipelinePool); err != nil {
			return nil, err
		}
	case len(raw.Jobs) > 0:
		if err := buildSingleStage(path, pipeline, meta, raw.Jobs, pipelinePool); err != nil {
			return nil, err
		}
	default:
		if err := buildSimple(path, pipeline, meta, raw.Steps, pipelinePool); err != nil {
			return nil, err
		}
	}

	if err := parser.ValidateStructure(path, pipeline); err != nil {
		return nil, err
	}
	return &parser.ParseResult{Pipeline: pipeline, Meta: meta}, nil
}

func buildJobSteps(path, jobID string, rawSteps []rawStep) ([]*model.Step, error) {
	steps := make([]*model.Step, 0, len(rawSteps))
	for i, rs := range rawSteps {
		step, err := mapStep(i, rs)
		if err != nil {
			return nil, &parser.ParseError{File: path, Message: fmt.Sprintf("job %q: %v", jobID, err)}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// buildSimple handles the `steps:`-only hierarchy: one implicit job.
func buildSimple(path string, pipeline *model.Pipeline, meta map[string]*parser.ParsedJobMeta, rawSteps []rawStep, pool string) error {
	steps, err := buildJobSteps(path, "job", rawSteps)
	if err != nil {
		return err
	}
	job := &model.Job{ID: "job", Name: "job", RunsOn: pool, Steps: steps}
	pipeline.AddJob(job)
	meta["job"] = &parser.ParsedJobMeta{}
	return nil
}

// buildSingleStage handles the `jobs: → steps:` hierarchy.
func buildSingleStage(path string, pipeline *model.Pipeline, meta map[string]*parser.ParsedJobMeta, jobs []rawJob, pipelinePool string) error {
	for i, rj := range jobs {
		id := rj.Job
		if id == "" {
			id = fmt.Sprintf("job%d", i)
		}
		pool, ok := poolImage(rj.Pool)
		if !ok {
			pool = pipelinePool
		}
		steps, err := buildJobSteps(path, id, rj.Steps)
		if err != nil {
			return err
		}
		dep := dependsOnList(rj.DependsOn)
		if len(dep) == 0 && i > 0 {
			dep = []string{jobIDOf(jobs[i-1], i-1)}
		}
		job := &model.Job{
			ID:        id,
			Name:      id,
			RunsOn:    pool,
			Steps:     steps,
			DependsOn: dep,
			Condition: rewriteVars(rj.Condition),
		}
		if rj.TimeoutInMinutes > 0 {
			job.Timeout = minutesToDuration(rj.TimeoutInMinutes)
		}
		pipeline.AddJob(job)
		meta[id] = &parser.ParsedJobMeta{}
	}
	return nil
}

func jobIDOf(rj rawJob, idx int) string {
	if rj.Job != "" {
		return rj.Job
	}
	return fmt.Sprintf("job%d", idx)
}

// buildMultiStage flattens `stages: → jobs: → steps:` into `{stage}_{job}`
// identified jobs, fanning dependencies out across every job in a
// depended stage, and AND-combining stage and job conditions.
func buildMultiStage(path string, pipeline *model.Pipeline, meta map[string]*parser.ParsedJobMeta, raw rawPipeline, pipelinePool string) error {
	stageJobIDs := make(map[string][]string, len(raw.Stages))
	stageIDs := make([]string, 0, len(raw.Stages))
	for _, s := range raw.Stages {
		id := s.Stage
		if id == "" {
			id = fmt.Sprintf("stage%d", len(stageIDs))
		}
		stageIDs = append(stageIDs, id)
	}

	for si, s := range raw.Stages {
		stageID := stageIDs[si]
		stagePool, ok := poolImage(s.Pool)
		if !ok {
			stagePool = pipelinePool
		}

		stageDeps := dependsOnList(s.DependsOn)
		if len(stageDeps) == 0 && si > 0 {
			stageDeps = []string{stageIDs[si-1]}
		}

		var fannedDeps []string
		for _, sd := range stageDeps {
			fannedDeps = append(fannedDeps, stageJobIDs[sd]...)
		}

		for ji, rj := range s.Jobs {
			jobName := jobIDOf(rj, ji)
			id := stageID + "_" + jobName
			stageJobIDs[stageID] = append(stageJobIDs[stageID], id)

			pool, ok := poolImage(rj.Pool)
			if !ok {
				pool = stagePool
			}
			steps, err := buildJobSteps(path, id, rj.Steps)
			if err != nil {
				return err
			}

			dep := append([]string{}, fannedDeps...)
			dep = append(dep, dependsOnList(rj.DependsOn)...)

			condition := combineConditions(rewriteVars(s.Condition), rewriteVars(rj.Condition))

			job := &model.Job{
				ID:        id,
				Name:      id,
				RunsOn:    pool,
				Steps:     steps,
				DependsOn: dep,
				Condition: condition,
			}
			if rj.TimeoutInMinutes > 0 {
				job.Timeout = minutesToDuration(rj.TimeoutInMinutes)
			}
			pipeline.AddJob(job)
			meta[id] = &parser.ParsedJobMeta{}
		}
	}
	return nil
}

func combineConditions(stageCond, jobCond string) string {
	switch {
	case stageCond == "" && jobCond == "":
		return ""
	case stageCond == "":
		return jobCond
	case jobCond == "":
		return stageCond
	default:
		return fmt.Sprintf("and(%s, %s)", stageCond, jobCond)
	}
}
