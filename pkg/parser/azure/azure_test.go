// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package azure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdk/pkg/model"
)

const multiStageWorkflow = `
pool:
  vmImage: ubuntu-latest
variables:
  - name: GREETING
    value: hello
stages:
  - stage: Build
    jobs:
      - job: do
        steps:
          - script: echo building
  - stage: Deploy
    dependsOn: Build
    jobs:
      - job: do
        steps:
          - script: echo $(GREETING)
`

func TestCanParse(t *testing.T) {
	p := New()
	assert.True(t, p.CanParse("azure-pipelines.yml", []byte(multiStageWorkflow)))
	assert.False(t, p.CanParse("azure-pipelines.txt", []byte(multiStageWorkflow)))
	assert.False(t, p.CanParse("plain.yml", []byte("name: x\nsteps: []\n")))
}

func TestParse_MultiStageFlatten(t *testing.T) {
	p := New()
	result, err := p.Parse("azure-pipelines.yml", []byte(multiStageWorkflow))
	require.NoError(t, err)

	pipeline := result.Pipeline
	assert.Equal(t, []string{"Build_do", "Deploy_do"}, pipeline.JobOrder)

	deploy := pipeline.Jobs["Deploy_do"]
	require.NotNil(t, deploy)
	assert.Equal(t, []string{"Build_do"}, deploy.DependsOn)
	assert.Equal(t, "ubuntu-latest", deploy.RunsOn)

	require.Len(t, deploy.Steps, 1)
	assert.Equal(t, "echo ${GREETING}", deploy.Steps[0].Script)
	assert.Equal(t, "hello", pipeline.Variables["GREETING"])
}

func TestParse_SingleStageJobs(t *testing.T) {
	const wf = `
pool:
  name: default
jobs:
  - job: build
    steps:
      - bash: echo hi
  - job: test
    dependsOn: build
    steps:
      - pwsh: Write-Host hi
`
	p := New()
	result, err := p.Parse("azure-pipelines.yml", []byte(wf))
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "test"}, result.Pipeline.JobOrder)
	assert.Equal(t, []string{"build"}, result.Pipeline.Jobs["test"].DependsOn)
	assert.Equal(t, model.StepKindBash, result.Pipeline.Jobs["build"].Steps[0].Kind)
	assert.Equal(t, model.StepKindPowerShell, result.Pipeline.Jobs["test"].Steps[0].Kind)
}

func TestParse_SimpleSteps(t *testing.T) {
	const wf = `
steps:
  - script: echo hi
    displayName: say hi
`
	p := New()
	result, err := p.Parse("azure-pipelines.yml", []byte(wf))
	require.NoError(t, err)
	assert.Equal(t, []string{"job"}, result.Pipeline.JobOrder)
	assert.Equal(t, "say hi", result.Pipeline.Jobs["job"].Steps[0].Name)
}

func TestParse_AmbiguousHierarchyRejected(t *testing.T) {
	const wf = `
steps:
  - script: echo hi
jobs:
  - job: build
    steps:
      - script: echo hi
`
	p := New()
	_, err := p.Parse("azure-pipelines.yml", []byte(wf))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestParse_StepPayloadExactlyOne(t *testing.T) {
	const wf = `
steps:
  - script: echo hi
    bash: echo hi
`
	p := New()
	_, err := p.Parse("azure-pipelines.yml", []byte(wf))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of task/bash/pwsh/powershell/script/checkout")
}

func TestClassifyTask(t *testing.T) {
	assert.Equal(t, model.StepKindDotnet, classifyTask("DotNetCoreCLI@2"))
	assert.Equal(t, model.StepKindPowerShell, classifyTask("PowerShell@2"))
	assert.Equal(t, model.StepKindScript, classifyTask("CmdLine@2"))
	assert.Equal(t, model.StepKindDocker, classifyTask("Docker@2"))
	assert.Equal(t, model.StepKindUnknown, classifyTask("SomeCustomTask@1"))
}

func TestRewriteVars(t *testing.T) {
	assert.Equal(t, "${FOO} and ${BAR}", rewriteVars("$(FOO) and $(BAR)"))
	assert.Equal(t, "no vars here", rewriteVars("no vars here"))
	assert.NotContains(t, rewriteVars("$(A)$(B)$(C)"), "$(")
}

func TestStageConditionCombination(t *testing.T) {
	const wf = `
stages:
  - stage: Build
    condition: eq(variables.foo, 'bar')
    jobs:
      - job: do
        condition: succeeded()
        steps:
          - script: echo hi
`
	p := New()
	result, err := p.Parse("azure-pipelines.yml", []byte(wf))
	require.NoError(t, err)
	job := result.Pipeline.Jobs["Build_do"]
	assert.Equal(t, "and(eq(variables.foo, 'bar'), succeeded())", job.Condition)
}
