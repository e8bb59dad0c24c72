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

	dockerclient "github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_HostModeIgnoresProbe(t *testing.T) {
	mode, err := Resolve(context.Background(), ModeHost, nil, func(context.Context, *dockerclient.Client) bool { return false }, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeHost, mode)
}

func TestResolve_DockerModeRequiresClient(t *testing.T) {
	_, err := Resolve(context.Background(), ModeDocker, nil, nil, nil)
	assert.Error(t, err)
}

func TestResolve_AutoFallsBackWhenProbeFails(t *testing.T) {
	cli, err := dockerclient.NewClientWithOpts()
	require.NoError(t, err)

	mode, err := Resolve(context.Background(), ModeAuto, cli, func(context.Context, *dockerclient.Client) bool { return false }, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeHost, mode)
}

func TestResolve_AutoUsesDockerWhenProbeSucceeds(t *testing.T) {
	cli, err := dockerclient.NewClientWithOpts()
	require.NoError(t, err)

	mode, err := Resolve(context.Background(), ModeAuto, cli, func(context.Context, *dockerclient.Client) bool { return true }, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeDocker, mode)
}

func TestResolve_UnknownModeErrors(t *testing.T) {
	_, err := Resolve(context.Background(), Mode("bogus"), nil, nil, nil)
	assert.Error(t, err)
}
