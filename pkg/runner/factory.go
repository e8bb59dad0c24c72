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
	"fmt"

	dockerclient "github.com/docker/docker/client"

	"pdk/pkg/logging"
)

// Mode selects which JobRunner backend a pipeline run uses.
type Mode string

const (
	ModeDocker Mode = "docker"
	ModeHost   Mode = "host"
	ModeAuto   Mode = "auto"
)

// DockerProbe reports whether a usable Docker daemon is reachable.
// pkg/runner/docker.Available satisfies this without pkg/runner
// importing pkg/runner/docker directly (that import would be circular,
// since the docker package itself depends on pkg/runner for JobRunner
// and Expander).
type DockerProbe func(ctx context.Context, cli *dockerclient.Client) bool

// Resolve turns a configured Mode into the concrete backend to use,
// probing the Docker daemon for ModeAuto and falling back to host mode
// with a warning when it's unreachable.
func Resolve(ctx context.Context, mode Mode, cli *dockerclient.Client, probe DockerProbe, log logging.Logger) (Mode, error) {
	switch mode {
	case ModeHost:
		return ModeHost, nil
	case ModeDocker:
		if cli == nil {
			return "", fmt.Errorf("docker runner requested but no Docker client is configured")
		}
		return ModeDocker, nil
	case ModeAuto, "":
		if cli != nil && probe != nil && probe(ctx, cli) {
			return ModeDocker, nil
		}
		if log != nil {
			log.Warn("no usable Docker daemon found; falling back to the host runner")
		}
		return ModeHost, nil
	default:
		return "", fmt.Errorf("unknown runner mode %q", mode)
	}
}
