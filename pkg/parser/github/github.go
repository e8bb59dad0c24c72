// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package github translates GitHub Actions workflow YAML into PDK's
// common pipeline model.
//
// The intermediate workflow shape (Workflow/Job/Step, yaml.Node-backed
// polymorphic fields for `on`/`needs`/`runs-on`) follows the model used
// by the nektos/act lineage referenced in the pack (psa-act's
// pkg/model/workflow.go) and by gh-actlock's parser package.
package github

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pdk/pkg/model"
	"pdk/pkg/parser"
)

// Parser implements parser.Parser for GitHub Actions workflow files.
type Parser struct{}

// New constructs a GitHub Actions Parser.
func New() *Parser { return &Parser{} }

// ID implements parser.Parser.
func (p *Parser) ID() string { return "github" }

// CanParse implements parser.Parser. A file is a GitHub workflow when
// it ends in .yml/.yaml and its YAML root has a `jobs:` mapping whose
// entries carry `runs-on`.
func (p *Parser) CanParse(path string, contents []byte) bool {
	lower := strings.ToLower(path)
	if !strings.HasSuffix(lower, ".yml") && !strings.HasSuffix(lower, ".yaml") {
		return false
	}

	var wf rawWorkflow
	if err := yaml.Unmarshal(contents, &wf); err != nil {
		return false
	}
	if len(wf.Jobs) == 0 {
		return false
	}
	for _, j := range wf.Jobs {
		if j.RunsOn.Kind != 0 {
			return true
		}
	}
	return false
}

// --- intermediate provider shape -------------------------------------------------

type rawWorkflow struct {
	Name string              `yaml:"name"`
	On   yaml.Node           `yaml:"on"`
	Env  map[string]string   `yaml:"env"`
	Jobs map[string]*rawJob  `yaml:"jobs"`
}

type rawJob struct {
	Name           string            `yaml:"name"`
	Needs          yaml.Node         `yaml:"needs"`
	RunsOn         yaml.Node         `yaml:"runs-on"`
	Env            map[string]string `yaml:"env"`
	If             string            `yaml:"if"`
	Steps          []rawStep         `yaml:"steps"`
	TimeoutMinutes int64             `yaml:"timeout-minutes"`
	Container      yaml.Node         `yaml:"container"`
	Services       map[string]any    `yaml:"services"`
	Strategy       *rawStrategy      `yaml:"strategy"`
}

type rawStrategy struct {
	FailFast    *bool                    `yaml:"fail-fast"`
	MaxParallel int                      `yaml:"max-parallel"`
	Matrix      map[string][]interface{} `yaml:"matrix"`
}

type rawStep struct {
	ID               string            `yaml:"id"`
	Name             string            `yaml:"name"`
	Uses             string            `yaml:"uses"`
	Run              string            `yaml:"run"`
	Shell            string            `yaml:"shell"`
	With             map[string]any    `yaml:"with"`
	Env              map[string]string `yaml:"env"`
	ContinueOnError  bool              `yaml:"continue-on-error"`
	If               string            `yaml:"if"`
	WorkingDirectory string            `yaml:"working-directory"`
}

func needsList(node yaml.Node) []string {
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

func scalarOrFirst(node yaml.Node) string {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		_ = node.Decode(&v)
		return v
	case yaml.SequenceNode:
		var v []string
		if node.Decode(&v) == nil && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// Parse implements parser.Parser.
func (p *Parser) Parse(path string, contents []byte) (*parser.ParseResult, error) {
	var wf rawWorkflow
	if err := yaml.Unmarshal(contents, &wf); err != nil {
		return nil, &parser.ParseError{File: path, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	pipeline := &model.Pipeline{
		Name:      wf.Name,
		Provider:  model.ProviderGitHub,
		Variables: wf.Env,
	}
	if pipeline.Name == "" {
		pipeline.Name = path
	}

	meta := make(map[string]*parser.ParsedJobMeta, len(wf.Jobs))

	// Deterministic order: YAML mapping order is preserved by yaml.v3's
	// Decode into map[string]*rawJob only via an ordered node — since we
	// already decoded into a map, fall back to re-walking the document
	// node for key order.
	order, err := jobOrder(contents)
	if err != nil {
		return nil, &parser.ParseError{File: path, Message: err.Error()}
	}

	for _, id := range order {
		raw, ok := wf.Jobs[id]
		if !ok {
			continue
		}
		job := &model.Job{
			ID:          id,
			Name:        raw.Name,
			RunsOn:      scalarOrFirst(raw.RunsOn),
			DependsOn:   needsList(raw.Needs),
			Environment: raw.Env,
			Condition:   raw.If,
		}
		if job.Name == "" {
			job.Name = id
		}
		if raw.TimeoutMinutes > 0 {
			job.Timeout = time.Duration(raw.TimeoutMinutes) * time.Minute
		}

		jobMeta := &parser.ParsedJobMeta{Container: scalarOrFirst(raw.Container)}
		if raw.Strategy != nil {
			failFast := true
			if raw.Strategy.FailFast != nil {
				failFast = *raw.Strategy.FailFast
			}
			matrix := make(map[string][]string, len(raw.Strategy.Matrix))
			for k, vals := range raw.Strategy.Matrix {
				strs := make([]string, 0, len(vals))
				for _, v := range vals {
					strs = append(strs, fmt.Sprint(v))
				}
				matrix[k] = strs
			}
			jobMeta.Strategy = &parser.MatrixStrategy{
				FailFast:    failFast,
				MaxParallel: raw.Strategy.MaxParallel,
				Matrix:      matrix,
			}
		}
		for name := range raw.Services {
			jobMeta.Services = append(jobMeta.Services, name)
		}

		for i, rs := range raw.Steps {
			if rs.Run != "" && (rs.Uses != "" || len(rs.With) > 0) {
				return nil, &parser.ParseError{File: path, Message: fmt.Sprintf("job %q step %d has both a script and structured inputs (run with uses/with)", id, i+1)}
			}
			step := mapStep(id, i, rs, jobMeta)
			job.Steps = append(job.Steps, step)
		}

		pipeline.AddJob(job)
		meta[id] = jobMeta
	}

	if err := parser.ValidateStructure(path, pipeline); err != nil {
		return nil, err
	}

	return &parser.ParseResult{Pipeline: pipeline, Meta: meta}, nil
}

// jobOrder walks the raw YAML document to recover the source order of
// the jobs mapping's keys, since decoding into a Go map loses it.
func jobOrder(contents []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if key.Value == "jobs" {
			jobsNode := root.Content[i+1]
			if jobsNode.Kind != yaml.MappingNode {
				return nil, nil
			}
			order := make([]string, 0, len(jobsNode.Content)/2)
			for j := 0; j+1 < len(jobsNode.Content); j += 2 {
				order = append(order, jobsNode.Content[j].Value)
			}
			return order, nil
		}
	}
	return nil, nil
}

// mapStep translates one GitHub Actions step into the common model,
// classifying `uses:` references via the ActionMapper table and
// recording provenance metadata.
func mapStep(jobID string, index int, rs rawStep, meta *parser.ParsedJobMeta) *model.Step {
	step := &model.Step{
		ID:               rs.ID,
		Name:             rs.Name,
		Environment:      rs.Env,
		ContinueOnError:  rs.ContinueOnError,
		Condition:        rs.If,
		WorkingDirectory: rs.WorkingDirectory,
	}
	if step.Name == "" {
		if rs.Uses != "" {
			step.Name = rs.Uses
		} else {
			step.Name = fmt.Sprintf("step-%d", index)
		}
	}
	switch rs.Shell {
	case "bash":
		step.Shell = model.ShellBash
	case "pwsh":
		step.Shell = model.ShellPwsh
	case "powershell":
		step.Shell = model.ShellPowerShell
	}

	if rs.Run != "" {
		step.Kind = model.StepKindScript
		step.Script = rs.Run
		return step
	}

	kind, ref := ClassifyUses(rs.Uses)
	step.Kind = kind
	if len(rs.With) > 0 {
		step.With = make(map[string]string, len(rs.With))
		for k, v := range rs.With {
			step.With[k] = fmt.Sprint(v)
		}
	}
	if ref != nil {
		ref.StepID = step.ID
		ref.Kind = kind
		meta.Actions = append(meta.Actions, *ref)
	}
	return step
}
