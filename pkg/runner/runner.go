// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package runner defines the job runner contract shared by the Docker
// and host execution backends, plus the filtering decorator that sits
// in front of either.
package runner

import (
	"context"

	"pdk/pkg/model"
)

// JobRunner drives one job's steps to completion, producing an
// aggregated result. Implementations own the container or host
// process lifecycle; step-level command composition is delegated to
// pkg/executor.
type JobRunner interface {
	RunJob(ctx context.Context, pipeline *model.Pipeline, job *model.Job) model.JobExecutionResult
}

// JobRunnerFunc adapts a function to a JobRunner.
type JobRunnerFunc func(ctx context.Context, pipeline *model.Pipeline, job *model.Job) model.JobExecutionResult

func (f JobRunnerFunc) RunJob(ctx context.Context, pipeline *model.Pipeline, job *model.Job) model.JobExecutionResult {
	return f(ctx, pipeline, job)
}
