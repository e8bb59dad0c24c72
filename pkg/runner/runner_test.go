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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdk/pkg/filter"
	"pdk/pkg/model"
)

func mkJob(names ...string) *model.Job {
	steps := make([]*model.Step, 0, len(names))
	for _, n := range names {
		steps = append(steps, &model.Step{Name: n, Kind: model.StepKindBash, Script: "echo " + n})
	}
	return &model.Job{ID: "build", Name: "build", Steps: steps}
}

func recordingInner(seen *[]*model.Job) JobRunner {
	return JobRunnerFunc(func(_ context.Context, _ *model.Pipeline, job *model.Job) model.JobExecutionResult {
		*seen = append(*seen, job)
		steps := make([]model.StepExecutionResult, len(job.Steps))
		for i, s := range job.Steps {
			steps[i] = model.StepExecutionResult{Name: s.Name, Success: true}
		}
		result := model.JobExecutionResult{JobName: job.Name, JobID: job.ID, Steps: steps}
		result.ComputeSuccess(job.Steps)
		return result
	})
}

func TestFilteringDecorator_NilFilterPassesThrough(t *testing.T) {
	var seen []*model.Job
	d := NewFilteringDecorator(recordingInner(&seen), nil)

	job := mkJob("a", "b")
	result := d.RunJob(context.Background(), nil, job)

	require.Len(t, seen, 1)
	assert.Same(t, job, seen[0], "nil filter should hand the original job straight to the inner runner")
	require.Len(t, result.Steps, 2)
	assert.True(t, result.Success)
}

func TestFilteringDecorator_NothingSkippedPassesThrough(t *testing.T) {
	var seen []*model.Job
	d := NewFilteringDecorator(recordingInner(&seen), filter.ByName())

	job := mkJob("a", "b")
	result := d.RunJob(context.Background(), nil, job)

	require.Len(t, seen, 1)
	assert.Same(t, job, seen[0])
	require.Len(t, result.Steps, 2)
}

func TestFilteringDecorator_SkipsAndMergesInOriginalOrder(t *testing.T) {
	var seen []*model.Job
	d := NewFilteringDecorator(recordingInner(&seen), filter.ByName("a", "c"))

	job := mkJob("a", "b", "c")
	result := d.RunJob(context.Background(), nil, job)

	require.Len(t, seen, 1)
	require.Len(t, seen[0].Steps, 2, "only the included steps should reach the inner runner")

	require.Len(t, result.Steps, 3, "merged result must preserve the original step count")
	assert.Equal(t, "a", result.Steps[0].Name)
	assert.True(t, result.Steps[0].Success)
	assert.Equal(t, "b", result.Steps[1].Name)
	assert.True(t, result.Steps[1].Success, "a skipped step reports success")
	assert.Contains(t, result.Steps[1].Stdout, "[SKIPPED]")
	assert.Equal(t, "c", result.Steps[2].Name)
	assert.True(t, result.Steps[2].Success)
}

func TestFilteringDecorator_EmptyJobPassesThrough(t *testing.T) {
	var seen []*model.Job
	d := NewFilteringDecorator(recordingInner(&seen), filter.ByName("a"))

	job := mkJob()
	d.RunJob(context.Background(), nil, job)
	require.Len(t, seen, 1)
	assert.Same(t, job, seen[0])
}

func TestFilteringDecorator_SkipDoesNotVetoSuccessWhenInnerFails(t *testing.T) {
	inner := JobRunnerFunc(func(_ context.Context, _ *model.Pipeline, job *model.Job) model.JobExecutionResult {
		steps := []model.StepExecutionResult{{Name: job.Steps[0].Name, Success: false}}
		result := model.JobExecutionResult{Steps: steps}
		result.ComputeSuccess(job.Steps)
		return result
	})
	d := NewFilteringDecorator(inner, filter.ByName("a"))

	job := mkJob("a", "b")
	result := d.RunJob(context.Background(), nil, job)

	require.Len(t, result.Steps, 2)
	assert.False(t, result.Success, "a real failure in an executed step still fails the job")
}

type stubExpander struct{ prefix string }

func (s stubExpander) Expand(v string) string { return s.prefix + v }

func TestExpandStep_ExpandsAllFields(t *testing.T) {
	step := &model.Step{
		Name:             "build",
		Script:           "echo ${NAME}",
		WorkingDirectory: "${DIR}",
		With:             map[string]string{"image": "${IMAGE}"},
		Environment:      map[string]string{"FOO": "${FOO}"},
	}
	out := ExpandStep(step, stubExpander{prefix: "X:"})

	assert.Equal(t, "X:echo ${NAME}", out.Script)
	assert.Equal(t, "X:${DIR}", out.WorkingDirectory)
	assert.Equal(t, "X:${IMAGE}", out.With["image"])
	assert.Equal(t, "X:${FOO}", out.Environment["FOO"])
	assert.Equal(t, "echo ${NAME}", step.Script, "the input step must not be mutated")
}

func TestExpandStep_NilStepReturnsNil(t *testing.T) {
	assert.Nil(t, ExpandStep(nil, stubExpander{}))
}

func TestExpandStep_NilExpanderReturnsStepUnchanged(t *testing.T) {
	step := &model.Step{Script: "echo hi"}
	assert.Same(t, step, ExpandStep(step, nil))
}

func TestExpandStep_PreservesNilMaps(t *testing.T) {
	step := &model.Step{Script: "echo hi"}
	out := ExpandStep(step, stubExpander{})

	assert.Nil(t, out.With)
	assert.Nil(t, out.Environment)
}
