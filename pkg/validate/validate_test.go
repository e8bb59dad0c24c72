// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdk/pkg/model"
)

type stubExecutors struct{ known map[model.StepKind]bool }

func (s stubExecutors) Has(kind model.StepKind) bool { return s.known[kind] }

type stubResolver struct{ values map[string]string }

func (s stubResolver) Lookup(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

func samplePipeline() *model.Pipeline {
	p := &model.Pipeline{}
	p.AddJob(&model.Job{
		ID:     "build",
		RunsOn: "ubuntu-latest",
		Steps: []*model.Step{
			{Name: "run tests", Kind: model.StepKindScript, Script: "echo ${GREETING}"},
		},
	})
	return p
}

func TestValidator_HappyPath(t *testing.T) {
	v := New(
		stubExecutors{known: map[model.StepKind]bool{model.StepKindScript: true}},
		stubResolver{values: map[string]string{"GREETING": "hi"}},
	)
	report := v.Validate(samplePipeline())
	assert.False(t, report.HasFatal())
	assert.Empty(t, report.Issues)
}

func TestValidator_MissingRunnerIsFatal(t *testing.T) {
	p := &model.Pipeline{}
	p.AddJob(&model.Job{ID: "build", Steps: []*model.Step{{Name: "x", Kind: model.StepKindScript, Script: "echo hi"}}})

	v := New(stubExecutors{known: map[model.StepKind]bool{model.StepKindScript: true}}, stubResolver{})
	report := v.Validate(p)
	require.True(t, report.HasFatal())
	assert.Contains(t, report.Issues[0].Message, "no runner target")
}

func TestValidator_StopsAtFirstFatalPhase(t *testing.T) {
	p := &model.Pipeline{}
	p.AddJob(&model.Job{ID: "build", Steps: []*model.Step{{Name: "x", Kind: model.StepKindUnknown, Script: "echo hi"}}})

	v := New(stubExecutors{}, stubResolver{values: map[string]string{}})
	report := v.Validate(p)
	require.True(t, report.HasFatal())
	// Schema phase is fatal (missing RunsOn), so the executor phase
	// (which would also fail for StepKindUnknown) never runs.
	for _, issue := range report.Issues {
		assert.NotContains(t, issue.Message, "no executor registered")
	}
}

func TestValidator_UndefinedVariableIsWarningNotFatal(t *testing.T) {
	v := New(
		stubExecutors{known: map[model.StepKind]bool{model.StepKindScript: true}},
		stubResolver{values: map[string]string{}},
	)
	report := v.Validate(samplePipeline())
	require.Len(t, report.Issues, 1)
	assert.Equal(t, SeverityWarning, report.Issues[0].Severity)
	assert.False(t, report.HasFatal())
}

func TestValidator_UndefinedVariableInWorkingDirectoryDetected(t *testing.T) {
	p := &model.Pipeline{}
	p.AddJob(&model.Job{
		ID:     "build",
		RunsOn: "ubuntu-latest",
		Steps: []*model.Step{
			{Name: "x", Kind: model.StepKindScript, Script: "echo hi", WorkingDirectory: "${MISSING_DIR}"},
		},
	})

	v := New(stubExecutors{known: map[model.StepKind]bool{model.StepKindScript: true}}, stubResolver{values: map[string]string{}})
	report := v.Validate(p)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0].Message, "MISSING_DIR")
}

func TestValidator_UndefinedVariableInWithAndEnvironmentDetected(t *testing.T) {
	p := &model.Pipeline{}
	p.AddJob(&model.Job{
		ID:     "build",
		RunsOn: "ubuntu-latest",
		Steps: []*model.Step{
			{
				Name:        "x",
				Kind:        model.StepKindScript,
				Script:      "echo hi",
				With:        map[string]string{"path": "${MISSING_WITH}"},
				Environment: map[string]string{"FOO": "${MISSING_ENV}"},
			},
		},
	})

	v := New(stubExecutors{known: map[model.StepKind]bool{model.StepKindScript: true}}, stubResolver{values: map[string]string{}})
	report := v.Validate(p)
	require.Len(t, report.Issues, 2)
	var messages []string
	for _, issue := range report.Issues {
		messages = append(messages, issue.Message)
	}
	assert.Contains(t, strings.Join(messages, "\n"), "MISSING_WITH")
	assert.Contains(t, strings.Join(messages, "\n"), "MISSING_ENV")
}

func TestValidator_DependencyCycleDetected(t *testing.T) {
	p := &model.Pipeline{}
	p.AddJob(&model.Job{ID: "a", RunsOn: "ubuntu-latest", DependsOn: []string{"b"}, Steps: []*model.Step{{Name: "x", Kind: model.StepKindScript, Script: "echo a"}}})
	p.AddJob(&model.Job{ID: "b", RunsOn: "ubuntu-latest", DependsOn: []string{"a"}, Steps: []*model.Step{{Name: "x", Kind: model.StepKindScript, Script: "echo b"}}})

	v := New(stubExecutors{known: map[model.StepKind]bool{model.StepKindScript: true}}, stubResolver{values: map[string]string{}})
	report := v.Validate(p)
	require.True(t, report.HasFatal())
	found := false
	for _, issue := range report.Issues {
		if issue.Message != "" && containsCycleWord(issue.Message) {
			found = true
		}
	}
	assert.True(t, found)
}

func containsCycleWord(s string) bool {
	for i := 0; i+5 <= len(s); i++ {
		if s[i:i+5] == "cycle" {
			return true
		}
	}
	return false
}

func TestAddPhase(t *testing.T) {
	v := NewEmpty()
	called := false
	v.AddPhase(Phase{Name: "custom", Run: func(p *model.Pipeline) []Issue {
		called = true
		return nil
	}})
	v.Validate(samplePipeline())
	assert.True(t, called)
}
