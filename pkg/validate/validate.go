// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package validate runs the post-parse validation cascade: an ordered
// sequence of phases, each producing zero or more severity-annotated
// issues, stopping at the first fatal one. Built-in phases mirror pkg/config's validate/validateBackend/validateFrontend cascade, generalized into a slice of Phase values so additional
// phases compose without touching the core.
package validate

import (
	"fmt"
	"regexp"

	"pdk/pkg/model"
)

// varRef matches `${NAME}` references, mirroring the expander's own
// pattern so the variable phase checks exactly what the expander will
// later substitute.
var varRef = regexp.MustCompile(`\$\{([^}]+)\}`)

func referencedNames(s string) []string {
	if s == "" {
		return nil
	}
	matches := varRef.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Severity classifies a validation Issue.
type Severity string

const (
	SeverityInfo    Severity = "Info"
	SeverityWarning Severity = "Warning"
	SeverityError   Severity = "Error"
)

// Issue is one validation finding.
type Issue struct {
	Severity Severity
	Job      string
	Step     string
	Line     int
	Message  string
}

func (i Issue) String() string {
	loc := i.Job
	if i.Step != "" {
		loc += "/" + i.Step
	}
	if loc == "" {
		return fmt.Sprintf("[%s] %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, loc, i.Message)
}

// Report aggregates issues across every phase that ran.
type Report struct {
	Issues []Issue
}

// HasFatal reports whether the report contains any SeverityError issue.
func (r *Report) HasFatal() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r *Report) add(issues ...Issue) {
	r.Issues = append(r.Issues, issues...)
}

// ExecutorRegistry is the minimal surface the executor phase needs:
// whether a step kind has a registered executor under the selected
// runner mode. pkg/executor.Registry satisfies this.
type ExecutorRegistry interface {
	Has(kind model.StepKind) bool
}

// VariableResolver is the minimal surface the variable phase needs:
// whether a `${NAME}` reference resolves. pkg/variables.Resolver
// satisfies this.
type VariableResolver interface {
	Lookup(name string) (string, bool)
}

// Phase is one named validation step run over a pipeline.
type Phase struct {
	Name string
	Run  func(p *model.Pipeline) []Issue
}

// Validator runs an ordered list of phases, stopping after the first
// one that produces a SeverityError issue.
type Validator struct {
	phases []Phase
}

// New constructs a Validator with the built-in schema/executor/
// variable/dependency phases, in that order.
func New(executors ExecutorRegistry, resolver VariableResolver) *Validator {
	return &Validator{phases: []Phase{
		SchemaPhase(),
		ExecutorPhase(executors),
		VariablePhase(resolver),
		DependencyPhase(),
	}}
}

// NewEmpty constructs a Validator with no phases; callers add their own
// via AddPhase. Used by tests and by callers composing a custom phase
// sequence.
func NewEmpty() *Validator {
	return &Validator{}
}

// AddPhase appends an additional phase to the end of the sequence,
// so callers can plug in extra checks without modifying the core
// phases.
func (v *Validator) AddPhase(p Phase) {
	v.phases = append(v.phases, p)
}

// Validate runs every phase in order against p, stopping after the
// first phase whose issues include a SeverityError.
func (v *Validator) Validate(p *model.Pipeline) *Report {
	report := &Report{}
	for _, phase := range v.phases {
		issues := phase.Run(p)
		report.add(issues...)
		if report.HasFatal() {
			break
		}
	}
	return report
}

// SchemaPhase checks structural completeness beyond what parse-time
// validation already enforced: every job has a runner target, every
// step has a display name, and job-level timeouts are non-negative.
func SchemaPhase() Phase {
	return Phase{Name: "schema", Run: func(p *model.Pipeline) []Issue {
		var issues []Issue
		for _, job := range p.OrderedJobs() {
			if job.RunsOn == "" {
				issues = append(issues, Issue{Severity: SeverityError, Job: job.ID, Message: "job has no runner target (runs-on/pool)"})
			}
			if job.Timeout < 0 {
				issues = append(issues, Issue{Severity: SeverityError, Job: job.ID, Message: "job timeout must not be negative"})
			}
			for _, step := range job.Steps {
				if step.Name == "" {
					issues = append(issues, Issue{Severity: SeverityWarning, Job: job.ID, Message: "step has no display name"})
				}
			}
		}
		return issues
	}}
}

// ExecutorPhase checks that every step kind has a registered executor
// for the chosen runner mode.
func ExecutorPhase(executors ExecutorRegistry) Phase {
	return Phase{Name: "executor", Run: func(p *model.Pipeline) []Issue {
		if executors == nil {
			return nil
		}
		var issues []Issue
		for _, job := range p.OrderedJobs() {
			for _, step := range job.Steps {
				if !executors.Has(step.Kind) {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Job:      job.ID,
						Step:     step.Name,
						Message:  fmt.Sprintf("no executor registered for step kind %q", step.Kind),
					})
				}
			}
		}
		return issues
	}}
}

// VariablePhase checks that every `${NAME}` reference in step fields
// resolves against the current layered resolver. This does not expand
// values — expansion happens at run time so late-binding CLI
// variables take effect — it only verifies resolvability. It scans
// the same fields pkg/runner.ExpandStep expands at run time (Script,
// WorkingDirectory, With, and Environment values), so an undefined
// reference anywhere expansion would touch is caught here rather than
// silently expanding to empty output.
func VariablePhase(resolver VariableResolver) Phase {
	return Phase{Name: "variable", Run: func(p *model.Pipeline) []Issue {
		if resolver == nil {
			return nil
		}
		var issues []Issue
		for _, job := range p.OrderedJobs() {
			for _, step := range job.Steps {
				check := func(s string) {
					for _, name := range referencedNames(s) {
						if _, ok := resolver.Lookup(name); !ok {
							issues = append(issues, Issue{
								Severity: SeverityWarning,
								Job:      job.ID,
								Step:     step.Name,
								Message:  fmt.Sprintf("reference to undefined variable %q", name),
							})
						}
					}
				}
				check(step.Script)
				check(step.WorkingDirectory)
				for _, v := range step.With {
					check(v)
				}
				for _, v := range step.Environment {
					check(v)
				}
			}
		}
		return issues
	}}
}

// DependencyPhase re-checks graph acyclicity and reference integrity as
// a defense in depth, redundant with parse-time validation.
func DependencyPhase() Phase {
	return Phase{Name: "dependency", Run: func(p *model.Pipeline) []Issue {
		var issues []Issue
		for _, job := range p.OrderedJobs() {
			for _, dep := range job.DependsOn {
				if _, ok := p.Jobs[dep]; !ok {
					issues = append(issues, Issue{Severity: SeverityError, Job: job.ID, Message: fmt.Sprintf("depends on unknown job %q", dep)})
				}
			}
		}
		if cycle, ok := findCycle(p); ok {
			issues = append(issues, Issue{Severity: SeverityError, Message: fmt.Sprintf("dependency cycle: %v", cycle)})
		}
		return issues
	}}
}

func findCycle(p *model.Pipeline) ([]string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(p.JobOrder))
	var path []string

	var visit func(id string) ([]string, bool)
	visit = func(id string) ([]string, bool) {
		color[id] = gray
		path = append(path, id)
		if job, ok := p.Jobs[id]; ok {
			for _, dep := range job.DependsOn {
				switch color[dep] {
				case gray:
					idx := 0
					for i, n := range path {
						if n == dep {
							idx = i
							break
						}
					}
					return append(append([]string{}, path[idx:]...), dep), true
				case white:
					if cyc, found := visit(dep); found {
						return cyc, true
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return nil, false
	}

	for _, id := range p.JobOrder {
		if color[id] == white {
			if cyc, found := visit(id); found {
				return cyc, true
			}
		}
	}
	return nil, false
}
