// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

//go:build unix

package executil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

// TestRunner_Run_CancelKillsBackgroundGrandchild proves that
// cancelling a step's context kills not just the step's direct child
// shell but a grandchild it backgrounded — the tree-kill behavior
// required on top of exec.CommandContext's single-process default.
func TestRunner_Run_CancelKillsBackgroundGrandchild(t *testing.T) {
	runner := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())

	pidFile := filepath.Join(t.TempDir(), "grandchild.pid")
	script := fmt.Sprintf(`sleep 30 & echo $! > %s; wait`, pidFile)
	cmd := NewCommand("sh", "-c", script)

	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	_, err := runner.Run(ctx, cmd)
	if err == nil {
		t.Fatal("expected Run() to return an error for a cancelled command")
	}

	raw, readErr := os.ReadFile(pidFile)
	if readErr != nil {
		t.Fatalf("reading grandchild pid file: %v", readErr)
	}
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(raw)))
	if convErr != nil {
		t.Fatalf("parsing grandchild pid: %v", convErr)
	}

	// Give the kill signal a moment to land, then confirm the
	// grandchild is gone: signal 0 only checks liveness.
	deadline := time.Now().Add(2 * time.Second)
	var alive bool
	for {
		alive = syscall.Kill(pid, 0) == nil
		if !alive || time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if alive {
		t.Fatalf("grandchild process %d survived context cancellation", pid)
	}
}
