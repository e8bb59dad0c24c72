// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package filter composes include/skip specifications over steps.
// Built-in filters and the preset registry follow
// pkg/providers/backend.Registry's shape (mutex-guarded map,
// panic-on-duplicate Register, deterministic IDs/List); the composite
// filter's skip-wins ordering follows a decorator-over-inheritance
// composition style: filters combine by wrapping, not subclassing.
package filter

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"pdk/pkg/model"
)

// FilterResult is the outcome of one filter's decision for one step.
type FilterResult struct {
	ShouldExecute bool
	Reason        string
}

// Filter decides whether a step at the given 0-based position within
// job should execute. (ByIndex matches that position against 1-based
// step numbers.)
type Filter interface {
	ShouldExecute(step *model.Step, index int, job *model.Job) FilterResult
}

// FilterFunc adapts a plain function to Filter.
type FilterFunc func(step *model.Step, index int, job *model.Job) FilterResult

func (f FilterFunc) ShouldExecute(step *model.Step, index int, job *model.Job) FilterResult {
	return f(step, index, job)
}

// ByName builds an include filter matching step display names, exact
// or glob (filepath.Match-style wildcard). Zero entries means "include
// all."
func ByName(names ...string) Filter {
	return FilterFunc(func(step *model.Step, _ int, _ *model.Job) FilterResult {
		if len(names) == 0 {
			return FilterResult{ShouldExecute: true, Reason: "no name filter configured"}
		}
		for _, n := range names {
			if n == step.Name {
				return FilterResult{ShouldExecute: true, Reason: fmt.Sprintf("matched step name %q", n)}
			}
			if ok, _ := filepath.Match(n, step.Name); ok {
				return FilterResult{ShouldExecute: true, Reason: fmt.Sprintf("matched step name pattern %q", n)}
			}
		}
		return FilterResult{ShouldExecute: false, Reason: "step name did not match any configured name/pattern"}
	})
}

// SkipByName is the skip-side counterpart of ByName.
func SkipByName(names ...string) Filter {
	include := ByName(names...)
	return FilterFunc(func(step *model.Step, index int, job *model.Job) FilterResult {
		if len(names) == 0 {
			return FilterResult{ShouldExecute: true, Reason: "no skip filter configured"}
		}
		r := include(step, index, job)
		return FilterResult{ShouldExecute: !r.ShouldExecute, Reason: r.Reason}
	})
}

// ByIndex includes only the given 1-based step indices. Zero entries
// means "include all."
func ByIndex(indices ...int) Filter {
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	return FilterFunc(func(_ *model.Step, index int, _ *model.Job) FilterResult {
		if len(set) == 0 {
			return FilterResult{ShouldExecute: true, Reason: "no index filter configured"}
		}
		oneBased := index + 1
		if set[oneBased] {
			return FilterResult{ShouldExecute: true, Reason: fmt.Sprintf("matched step index %d", oneBased)}
		}
		return FilterResult{ShouldExecute: false, Reason: "step index not in configured set"}
	})
}

// ByJobName includes only steps belonging to the named jobs. Zero
// entries means "include all."
func ByJobName(jobNames ...string) Filter {
	set := make(map[string]bool, len(jobNames))
	for _, n := range jobNames {
		set[n] = true
	}
	return FilterFunc(func(_ *model.Step, _ int, job *model.Job) FilterResult {
		if len(set) == 0 {
			return FilterResult{ShouldExecute: true, Reason: "no job filter configured"}
		}
		if set[job.Name] || set[job.ID] {
			return FilterResult{ShouldExecute: true, Reason: fmt.Sprintf("matched job %q", job.Name)}
		}
		return FilterResult{ShouldExecute: false, Reason: "job did not match any configured job name"}
	})
}

// Preset is a named bundle of include/skip step-name specifications,
// declared in configuration.
type Preset struct {
	Steps     []string `yaml:"steps" json:"steps"`
	SkipSteps []string `yaml:"skipSteps" json:"skipSteps"`
}

// ErrUnknownPreset is returned by PresetRegistry.Get for an unregistered name.
var ErrUnknownPreset = errors.New("unknown filter preset")

// ErrDuplicatePreset is used when registering a name twice.
var ErrDuplicatePreset = errors.New("duplicate filter preset")

// PresetRegistry holds named filter presets, mirroring backend.Registry's shape.
type PresetRegistry struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

// NewPresetRegistry constructs an empty PresetRegistry.
func NewPresetRegistry() *PresetRegistry {
	return &PresetRegistry{presets: make(map[string]Preset)}
}

// Register adds a preset under name. Panics on an empty or duplicate
// name, matching backend.Registry's fail-fast construction-time contract.
func (r *PresetRegistry) Register(name string, p Preset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		panic("filter.PresetRegistry.Register: empty preset name")
	}
	if _, exists := r.presets[name]; exists {
		panic(fmt.Sprintf("filter.PresetRegistry.Register: %v: %q", ErrDuplicatePreset, name))
	}
	r.presets[name] = p
}

// Get returns the named preset as a composite Filter.
func (r *PresetRegistry) Get(name string) (Filter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return Composite(SkipByName(p.SkipSteps...), ByName(p.Steps...)), nil
}

// Names returns every registered preset name in lexicographic order.
func (r *PresetRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.presets))
	for n := range r.presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Composite AND-combines filters with skip-wins precedence: if any
// skip filter reports "do not execute" the step is skipped regardless
// of what any include filter says. Filters are classified by their own
// ShouldExecute semantics — callers pass skip-shaped filters (built via
// SkipByName, etc.) ahead of include-shaped ones, but Composite's only
// real contract is "any false wins."
func Composite(filters ...Filter) Filter {
	return FilterFunc(func(step *model.Step, index int, job *model.Job) FilterResult {
		if len(filters) == 0 {
			return FilterResult{ShouldExecute: true, Reason: "no filters configured"}
		}
		for _, f := range filters {
			r := f.ShouldExecute(step, index, job)
			if !r.ShouldExecute {
				return r
			}
		}
		return FilterResult{ShouldExecute: true, Reason: "passed all configured filters"}
	})
}
