// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package planner computes a deterministic, dependency-respecting
// execution order over a pipeline's jobs, breaking ties on insertion
// order so the same pipeline always plans to the same schedule.
package planner

import (
	"fmt"
	"sort"

	"pdk/pkg/model"
)

// Plan is a frozen, ordered execution schedule for one pipeline.
type Plan struct {
	Jobs []*model.Job // in execution order
}

// ErrCycle is returned when the dependency graph is not a DAG. The
// planner runs after parse-time and validation-phase cycle checks
// already passed, so reaching this here indicates an internal
// invariant violation rather than a user-facing input error.
type ErrCycle struct {
	Cycle []string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("planner: internal invariant violated, dependency cycle at plan time: %v", e.Cycle)
}

// Plan topologically sorts p's jobs by DependsOn, breaking ties by
// insertion order (JobOrder) for determinism.
func Plan(p *model.Pipeline) (*Plan, error) {
	indexOf := make(map[string]int, len(p.JobOrder))
	for i, id := range p.JobOrder {
		indexOf[id] = i
	}

	inDegree := make(map[string]int, len(p.JobOrder))
	dependents := make(map[string][]string, len(p.JobOrder))
	for _, id := range p.JobOrder {
		job := p.Jobs[id]
		inDegree[id] = len(job.DependsOn)
		for _, dep := range job.DependsOn {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for _, id := range p.JobOrder {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool { return indexOf[ready[i]] < indexOf[ready[j]] })

	var ordered []string
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool { return indexOf[ready[i]] < indexOf[ready[j]] })
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, id)

		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(ordered) != len(p.JobOrder) {
		var remaining []string
		for _, id := range p.JobOrder {
			if inDegree[id] > 0 {
				remaining = append(remaining, id)
			}
		}
		return nil, &ErrCycle{Cycle: remaining}
	}

	jobs := make([]*model.Job, 0, len(ordered))
	for _, id := range ordered {
		jobs = append(jobs, p.Jobs[id])
	}
	return &Plan{Jobs: jobs}, nil
}
