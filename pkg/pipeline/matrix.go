// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"pdk/pkg/model"
	"pdk/pkg/parser"
)

// expandMatrix replaces every job whose ParsedJobMeta declares a
// strategy.matrix with one cloned job per axis combination, fanning
// dependency edges from the original job ID out to every clone —
// the same "fan out to every job the edge used to point at" approach
// the Azure parser already uses for stage flattening. Each clone's
// Environment gains one MATRIX_<KEY> entry per axis so step scripts
// can branch on it the same way they do on any other variable.
//
// Jobs with no matrix strategy pass through untouched, preserving
// JobOrder for them.
func expandMatrix(p *model.Pipeline, meta map[string]*parser.ParsedJobMeta) {
	expansions := make(map[string][]string, len(p.JobOrder))
	newOrder := make([]string, 0, len(p.JobOrder))
	newJobs := make(map[string]*model.Job, len(p.Jobs))

	for _, id := range p.JobOrder {
		job := p.Jobs[id]
		jm := meta[id]
		if jm == nil || jm.Strategy == nil || len(jm.Strategy.Matrix) == 0 {
			newOrder = append(newOrder, id)
			newJobs[id] = job
			continue
		}

		var clones []string
		for _, combo := range matrixCombinations(jm.Strategy.Matrix) {
			clone := cloneJobForMatrix(job, combo)
			newOrder = append(newOrder, clone.ID)
			newJobs[clone.ID] = clone
			clones = append(clones, clone.ID)
		}
		expansions[id] = clones
	}

	for _, id := range newOrder {
		job := newJobs[id]
		if len(job.DependsOn) == 0 {
			continue
		}
		deps := make([]string, 0, len(job.DependsOn))
		for _, dep := range job.DependsOn {
			if clones, ok := expansions[dep]; ok {
				deps = append(deps, clones...)
			} else {
				deps = append(deps, dep)
			}
		}
		job.DependsOn = deps
	}

	p.JobOrder = newOrder
	p.Jobs = newJobs
}

// matrixCombinations returns the cartesian product of matrix's axes,
// one map per combination, in a deterministic order (axis keys sorted,
// each axis's own value order preserved).
func matrixCombinations(matrix map[string][]string) []map[string]string {
	keys := make([]string, 0, len(matrix))
	for k := range matrix {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]string{{}}
	for _, k := range keys {
		var next []map[string]string
		for _, existing := range combos {
			for _, v := range matrix[k] {
				c := make(map[string]string, len(existing)+1)
				for ek, ev := range existing {
					c[ek] = ev
				}
				c[k] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// cloneJobForMatrix builds one matrix-axis clone of job: same steps,
// runner target, and condition, with combo's values layered into
// Environment as MATRIX_<KEY> and folded into a unique ID/display name.
func cloneJobForMatrix(job *model.Job, combo map[string]string) *model.Job {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make(map[string]string, len(job.Environment)+len(combo))
	for k, v := range job.Environment {
		env[k] = v
	}
	var parts []string
	for _, k := range keys {
		v := combo[k]
		env["MATRIX_"+sanitizeEnvKey(strings.ToUpper(k))] = v
		parts = append(parts, k+"="+v)
	}
	suffix := sanitizeID(strings.Join(parts, "_"))

	steps := make([]*model.Step, len(job.Steps))
	copy(steps, job.Steps)

	return &model.Job{
		ID:          job.ID + "_" + suffix,
		Name:        fmt.Sprintf("%s (%s)", job.Name, strings.Join(parts, ", ")),
		RunsOn:      job.RunsOn,
		Steps:       steps,
		DependsOn:   append([]string{}, job.DependsOn...),
		Environment: env,
		Condition:   job.Condition,
		Timeout:     job.Timeout,
	}
}

func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func sanitizeEnvKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
