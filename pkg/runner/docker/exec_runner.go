// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"pdk/pkg/executil"
)

// execRunner satisfies pkg/executil.Runner by exec-ing into an
// already-running container instead of spawning a host process,
// letting pkg/executor's command-composing executors drive either
// backend through the same interface.
type execRunner struct {
	client      *client.Client
	containerID string
}

func (r *execRunner) Run(ctx context.Context, cmd executil.Command) (*executil.Result, error) {
	var stdout, stderr bytes.Buffer
	exitCode, err := r.exec(ctx, cmd, &stdout, &stderr)
	result := &executil.Result{ExitCode: exitCode, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		return result, err
	}
	if exitCode != 0 {
		return result, fmt.Errorf("command exited with status %d", exitCode)
	}
	return result, nil
}

func (r *execRunner) RunStream(ctx context.Context, cmd executil.Command, output io.Writer) error {
	exitCode, err := r.exec(ctx, cmd, output, output)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("command exited with status %d", exitCode)
	}
	return nil
}

func (r *execRunner) exec(ctx context.Context, cmd executil.Command, stdout, stderr io.Writer) (int, error) {
	argv := append([]string{cmd.Name}, cmd.Args...)
	execCfg := container.ExecOptions{
		Cmd:          argv,
		Env:          envSlice(cmd.Env),
		WorkingDir:   cmd.Dir,
		AttachStdout: true,
		AttachStderr: true,
		AttachStdin:  cmd.Stdin != nil,
	}

	created, err := r.client.ContainerExecCreate(ctx, r.containerID, execCfg)
	if err != nil {
		return -1, fmt.Errorf("creating exec: %w", err)
	}

	attached, err := r.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return -1, fmt.Errorf("attaching to exec: %w", err)
	}
	defer attached.Close()

	if cmd.Stdin != nil {
		go func() {
			_, _ = io.Copy(attached.Conn, cmd.Stdin)
			attached.CloseWrite()
		}()
	}

	if _, err := stdcopy.StdCopy(stdout, stderr, attached.Reader); err != nil && !errors.Is(err, io.EOF) {
		return -1, fmt.Errorf("reading exec output: %w", err)
	}

	inspect, err := r.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return -1, fmt.Errorf("inspecting exec result: %w", err)
	}
	return inspect.ExitCode, nil
}
