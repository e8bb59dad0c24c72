// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package docker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdk/pkg/model"
)

func TestResolveImage_KnownLabels(t *testing.T) {
	img, err := ResolveImage("")
	require.NoError(t, err)
	assert.Equal(t, "ubuntu:22.04", img)

	img, err = ResolveImage("ubuntu-latest")
	require.NoError(t, err)
	assert.Equal(t, "ubuntu:22.04", img)

	img, err = ResolveImage("ubuntu-20.04")
	require.NoError(t, err)
	assert.Equal(t, "ubuntu:20.04", img)
}

func TestResolveImage_RawImagePassesThrough(t *testing.T) {
	img, err := ResolveImage("golang:1.24")
	require.NoError(t, err)
	assert.Equal(t, "golang:1.24", img)
}

func TestResolveImage_RejectsMalformedReference(t *testing.T) {
	_, err := ResolveImage("Invalid Image Name!!")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidImage))
}

func TestWithBuiltins_JobEnvironmentWins(t *testing.T) {
	env := withBuiltins(map[string]string{"RUNNER": "custom"}, "build")
	assert.Equal(t, containerWorkspace, env["WORKSPACE"])
	assert.Equal(t, "build", env["JOB_NAME"])
	assert.Equal(t, "custom", env["RUNNER"])
}

func TestContainerName_UniquePerCall(t *testing.T) {
	a := containerName("build")
	b := containerName("build")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "pdk-build-"))
}

func TestWorkingDirectory_DefaultsToWorkspace(t *testing.T) {
	assert.Equal(t, containerWorkspace, workingDirectory(&model.Step{}))
}

func TestWorkingDirectory_RelativeJoinsWorkspace(t *testing.T) {
	assert.Equal(t, containerWorkspace+"/sub", workingDirectory(&model.Step{WorkingDirectory: "sub"}))
}

func TestWorkingDirectory_AbsolutePassesThrough(t *testing.T) {
	assert.Equal(t, "/opt/app", workingDirectory(&model.Step{WorkingDirectory: "/opt/app"}))
}

func TestMergeEnv_StepOverridesJob(t *testing.T) {
	merged := mergeEnv(map[string]string{"A": "job", "B": "job"}, map[string]string{"A": "step"})
	assert.Equal(t, "step", merged["A"])
	assert.Equal(t, "job", merged["B"])
}

func TestEnvSlice_FormatsKeyValuePairs(t *testing.T) {
	out := envSlice(map[string]string{"FOO": "bar"})
	assert.Equal(t, []string{"FOO=bar"}, out)
}
