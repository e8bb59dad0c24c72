// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdk/pkg/model"
)

const simpleWorkflow = `
name: build-and-test
on: [push]
env:
  CI: "true"
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - name: checkout
        uses: actions/checkout@v4
      - name: run tests
        run: go test ./...
  deploy:
    needs: build
    runs-on: ubuntu-latest
    steps:
      - uses: actions/upload-artifact@v4
        with:
          name: binary
          path: dist/
`

func TestCanParse(t *testing.T) {
	p := New()
	assert.True(t, p.CanParse("workflow.yml", []byte(simpleWorkflow)))
	assert.False(t, p.CanParse("workflow.txt", []byte(simpleWorkflow)))
	assert.False(t, p.CanParse("empty.yml", []byte("name: x\n")))
}

func TestParse_HappyPath(t *testing.T) {
	p := New()
	result, err := p.Parse("workflow.yml", []byte(simpleWorkflow))
	require.NoError(t, err)
	require.NotNil(t, result)

	pipeline := result.Pipeline
	assert.Equal(t, model.ProviderGitHub, pipeline.Provider)
	assert.Equal(t, []string{"build", "deploy"}, pipeline.JobOrder)
	assert.Equal(t, "true", pipeline.Variables["CI"])

	build := pipeline.Jobs["build"]
	require.NotNil(t, build)
	assert.Equal(t, "ubuntu-latest", build.RunsOn)
	require.Len(t, build.Steps, 2)
	assert.Equal(t, model.StepKindCheckout, build.Steps[0].Kind)
	assert.Equal(t, model.StepKindScript, build.Steps[1].Kind)
	assert.Equal(t, "go test ./...", build.Steps[1].Script)

	deploy := pipeline.Jobs["deploy"]
	require.NotNil(t, deploy)
	assert.Equal(t, []string{"build"}, deploy.DependsOn)
	require.Len(t, deploy.Steps, 1)
	assert.Equal(t, model.StepKindUploadArtifact, deploy.Steps[0].Kind)
	assert.Equal(t, "binary", deploy.Steps[0].With["name"])

	deployMeta := result.Meta["deploy"]
	require.NotNil(t, deployMeta)
	require.Len(t, deployMeta.Actions, 1)
	assert.Equal(t, "actions", deployMeta.Actions[0].Owner)
	assert.Equal(t, "upload-artifact", deployMeta.Actions[0].Repo)
	assert.Equal(t, "v4", deployMeta.Actions[0].Ref)
}

func TestParse_ZeroStepJobRejected(t *testing.T) {
	const wf = `
jobs:
  empty:
    runs-on: ubuntu-latest
    steps: []
`
	p := New()
	_, err := p.Parse("workflow.yml", []byte(wf))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero steps")
}

func TestParse_UnknownDependencyRejected(t *testing.T) {
	const wf = `
jobs:
  build:
    needs: missing
    runs-on: ubuntu-latest
    steps:
      - run: echo hi
`
	p := New()
	_, err := p.Parse("workflow.yml", []byte(wf))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job")
}

func TestParse_DependencyCycleRejected(t *testing.T) {
	const wf = `
jobs:
  a:
    needs: b
    runs-on: ubuntu-latest
    steps:
      - run: echo a
  b:
    needs: a
    runs-on: ubuntu-latest
    steps:
      - run: echo b
`
	p := New()
	_, err := p.Parse("workflow.yml", []byte(wf))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestParse_BothScriptAndStructuredRejected(t *testing.T) {
	const wf = `
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
        run: echo hi
`
	p := New()
	_, err := p.Parse("workflow.yml", []byte(wf))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both a script and structured inputs")
}

func TestClassifyUses(t *testing.T) {
	cases := []struct {
		uses string
		kind model.StepKind
	}{
		{"actions/checkout@v4", model.StepKindCheckout},
		{"actions/upload-artifact@v4", model.StepKindUploadArtifact},
		{"actions/download-artifact@v4", model.StepKindDownloadArtifact},
		{"actions/setup-node@v4", model.StepKindNpm},
		{"actions/setup-dotnet@v3", model.StepKindDotnet},
		{"actions/setup-python@v5", model.StepKindPython},
		{"actions/setup-java@v4", model.StepKindMaven},
		{"docker/build-push-action@v5", model.StepKindDocker},
		{"some-org/totally-custom-action@main", model.StepKindUnknown},
	}
	for _, c := range cases {
		kind, ref := ClassifyUses(c.uses)
		assert.Equal(t, c.kind, kind, c.uses)
		require.NotNil(t, ref)
	}

	kind, ref := ClassifyUses("")
	assert.Equal(t, model.StepKindUnknown, kind)
	assert.Nil(t, ref)
}
