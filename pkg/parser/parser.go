// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package parser provides the provider-to-common-model translation
// framework: a Factory that selects the right vendor parser for a file,
// and the shared parse-time validation (identifier uniqueness, cycle
// detection) every provider parser must run before returning a Pipeline.
package parser

import (
	"fmt"
	"sort"
	"sync"

	"pdk/pkg/model"
)

// ParseError carries file/line context for a parse failure: fatal at
// parse time, one message per root cause, carrying file and line when
// available.
type ParseError struct {
	File    string
	Line    int // 0 when unavailable
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// ParsedJobMeta carries provider-specific details that the common Job
// type deliberately does not model (matrix strategy, sibling service
// containers, action provenance). It is returned alongside the
// Pipeline, keyed by job ID; pkg/pipeline consumes it to matrix-expand
// jobs, override the runner image, warn about unsupported sibling
// services, and log resolved action references at step-start.
type ParsedJobMeta struct {
	Strategy  *MatrixStrategy
	Container string
	Services  []string
	Actions   []ActionRef // one per step that had a `uses:`-shaped reference
}

// MatrixStrategy mirrors GitHub Actions' job.strategy block.
type MatrixStrategy struct {
	FailFast    bool
	MaxParallel int
	Matrix      map[string][]string
}

// ActionRef is a parsed `uses: owner/repo@ref` reference, following the
// gh-actlock WorkflowAction shape (owner/repo split from the version
// pin).
type ActionRef struct {
	StepID string
	Owner  string
	Repo   string
	Ref    string
	Kind   model.StepKind
}

// ParseResult is what a Parser returns: the common Pipeline plus the
// side-channel metadata described above.
type ParseResult struct {
	Pipeline *model.Pipeline
	Meta     map[string]*ParsedJobMeta // keyed by job ID
}

// Parser is implemented by each vendor-specific translator.
type Parser interface {
	// ID returns a short provider identifier, e.g. "github", "azure".
	ID() string

	// CanParse reports whether this parser recognizes the file at path.
	// It must not fail on a malformed file — malformed files simply
	// don't match and CanParse returns false.
	CanParse(path string, contents []byte) bool

	// Parse translates the file into the common model. Parse may
	// assume CanParse(path, contents) was true.
	Parse(path string, contents []byte) (*ParseResult, error)
}

// Factory holds an ordered collection of parsers and selects the first
// one that recognizes a given file, mirroring pkg/providers/backend.Registry's shape (mutex-guarded, deterministic
// listing) but ordered rather than keyed, since provider selection is
// CanParse-first-match rather than by-name lookup.
type Factory struct {
	mu      sync.RWMutex
	parsers []Parser
}

// NewFactory creates an empty Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Register appends a parser to the selection order.
func (f *Factory) Register(p Parser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parsers = append(f.parsers, p)
}

// SelectParser returns the first registered parser whose CanParse is
// true for the given file, or an error listing every registered parser.
func (f *Factory) SelectParser(path string, contents []byte) (Parser, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, p := range f.parsers {
		if p.CanParse(path, contents) {
			return p, nil
		}
	}

	ids := make([]string, 0, len(f.parsers))
	for _, p := range f.parsers {
		ids = append(ids, p.ID())
	}
	sort.Strings(ids)
	return nil, fmt.Errorf("no parser for %s; registered parsers: %v", path, ids)
}

// Parse selects a parser for path and parses contents with it.
func (f *Factory) Parse(path string, contents []byte) (*ParseResult, error) {
	p, err := f.SelectParser(path, contents)
	if err != nil {
		return nil, err
	}
	return p.Parse(path, contents)
}

// ValidateStructure runs the parse-time structural invariants
// of every provider parser before it hands a Pipeline back: every job
// identifier in DependsOn exists, the dependency graph is acyclic,
// every job has at least one step, and no step carries both a script
// and structured inputs. A step with neither payload is accepted.
func ValidateStructure(file string, p *model.Pipeline) error {
	if len(p.Jobs) == 0 {
		return &ParseError{File: file, Message: "pipeline has no jobs"}
	}

	seen := make(map[string]bool, len(p.JobOrder))
	for _, id := range p.JobOrder {
		if id == "" {
			return &ParseError{File: file, Message: "job has empty identifier"}
		}
		if seen[id] {
			return &ParseError{File: file, Message: fmt.Sprintf("duplicate job identifier %q", id)}
		}
		seen[id] = true
	}

	for _, id := range p.JobOrder {
		job := p.Jobs[id]
		if len(job.Steps) == 0 {
			return &ParseError{File: file, Message: fmt.Sprintf("job %q has zero steps", id)}
		}
		for _, dep := range job.DependsOn {
			if _, ok := p.Jobs[dep]; !ok {
				return &ParseError{File: file, Message: fmt.Sprintf("job %q depends on unknown job %q", id, dep)}
			}
		}
		for _, step := range job.Steps {
			hasScript := step.HasScriptPayload()
			hasStructured := step.HasStructuredPayload()
			if hasScript && hasStructured {
				return &ParseError{File: file, Message: fmt.Sprintf("job %q step %q has both a script and structured inputs", id, step.Name)}
			}
		}
	}

	if cyclePath, ok := findCycle(p); ok {
		return &ParseError{File: file, Message: fmt.Sprintf("dependency cycle: %v", cyclePath)}
	}

	return nil
}

// findCycle runs a DFS with a recursion-stack set over the job
// dependency graph, returning the cycle's node sequence if one exists.
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

		job, ok := p.Jobs[id]
		if ok {
			for _, dep := range job.DependsOn {
				switch color[dep] {
				case gray:
					// Found the back-edge; report the cycle portion of path.
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
