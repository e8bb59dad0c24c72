// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package runner

import (
	"context"

	"pdk/pkg/filter"
	"pdk/pkg/model"
)

// FilteringDecorator wraps a JobRunner, splitting a job's steps into
// an execute set (handed to the inner runner) and a skip set (given a
// synthetic success result directly). The merged result always has
// exactly len(job.Steps) entries in the original order, regardless of
// how many were filtered out.
type FilteringDecorator struct {
	inner  JobRunner
	filter filter.Filter
}

// NewFilteringDecorator builds a decorator applying f in front of inner.
func NewFilteringDecorator(inner JobRunner, f filter.Filter) *FilteringDecorator {
	return &FilteringDecorator{inner: inner, filter: f}
}

func (d *FilteringDecorator) RunJob(ctx context.Context, pipeline *model.Pipeline, job *model.Job) model.JobExecutionResult {
	if d.filter == nil || len(job.Steps) == 0 {
		return d.inner.RunJob(ctx, pipeline, job)
	}

	runSteps := make([]*model.Step, 0, len(job.Steps))
	runOrigIndex := make([]int, 0, len(job.Steps))
	skipReason := make(map[int]string)

	for i, step := range job.Steps {
		decision := d.filter.ShouldExecute(step, i, job)
		if decision.ShouldExecute {
			runSteps = append(runSteps, step)
			runOrigIndex = append(runOrigIndex, i)
		} else {
			skipReason[i] = decision.Reason
		}
	}

	if len(skipReason) == 0 {
		return d.inner.RunJob(ctx, pipeline, job)
	}

	filteredJob := *job
	filteredJob.Steps = runSteps
	inner := d.inner.RunJob(ctx, pipeline, &filteredJob)

	merged := model.JobExecutionResult{
		JobName:      inner.JobName,
		JobID:        inner.JobID,
		ErrorMessage: inner.ErrorMessage,
		StartedAt:    inner.StartedAt,
		EndedAt:      inner.EndedAt,
		Steps:        make([]model.StepExecutionResult, len(job.Steps)),
	}

	for pos, origIdx := range runOrigIndex {
		if pos < len(inner.Steps) {
			merged.Steps[origIdx] = inner.Steps[pos]
		}
	}
	for origIdx, reason := range skipReason {
		merged.Steps[origIdx] = model.StepExecutionResult{
			Name:     job.Steps[origIdx].Name,
			Success:  true,
			ExitCode: 0,
			Stdout:   "[SKIPPED] " + reason,
		}
	}

	merged.ComputeSuccess(job.Steps)
	return merged
}
