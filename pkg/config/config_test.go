// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdk/pkg/runner"
)

func TestDefaultConfigPath(t *testing.T) {
	assert.Equal(t, ".pdkrc", DefaultConfigPath())
}

func TestExists_ReportsCorrectly(t *testing.T) {
	tmpDir := t.TempDir()

	nonExisting := filepath.Join(tmpDir, "nope.yml")
	ok, err := Exists(nonExisting)
	require.NoError(t, err)
	assert.False(t, ok)

	existing := filepath.Join(tmpDir, ".pdkrc")
	require.NoError(t, os.WriteFile(existing, []byte("runner: host\n"), 0o644))
	ok, err = Exists(existing)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoad_MissingFileReturnsErrConfigNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := Load(filepath.Join(tmpDir, ".pdkrc"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".pdkrc")
	body := `
runner: host
timeout: 60
watch:
  debounceMs: 500
logging:
  level: warning
  format: json
variables:
  FOO: bar
presets:
  smoke:
    steps: ["build", "test"]
masking:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, runner.ModeHost, cfg.Runner)
	assert.Equal(t, 60, cfg.Timeout)
	assert.Equal(t, 500, cfg.Watch.DebounceMs)
	assert.Equal(t, "warning", cfg.Logging.Level)
	assert.Equal(t, "bar", cfg.Variables["FOO"])
	assert.Equal(t, []string{"build", "test"}, cfg.Presets["smoke"].Steps)
	assert.False(t, cfg.Masking.IsEnabled())
}

func TestLoad_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "pdk.config.json")
	body := `{"runner": "docker", "timeout": 120}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, runner.ModeDocker, cfg.Runner)
	assert.Equal(t, 120, cfg.Timeout)
}

func TestLoad_InvalidRunnerRejected(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".pdkrc")
	require.NoError(t, os.WriteFile(path, []byte("runner: spaceship\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_DebounceOutOfBoundsRejected(t *testing.T) {
	for _, ms := range []int{1, 99999} {
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, ".pdkrc")
		require.NoError(t, os.WriteFile(path, []byte(
			"runner: host\nwatch:\n  debounceMs: "+strconv.Itoa(ms)+"\n"), 0o644))

		_, err := Load(path)
		assert.Error(t, err, "debounceMs=%d should be rejected", ms)
	}
}

func TestLoad_InvalidLoggingLevelRejected(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".pdkrc")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: catastrophic\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EmptyPresetRejected(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".pdkrc")
	require.NoError(t, os.WriteFile(path, []byte("presets:\n  empty: {}\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefault_MasksByDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Masking.IsEnabled())
	assert.Equal(t, runner.ModeAuto, cfg.Runner)
}

func TestLoggingConfig_ResolveLevel(t *testing.T) {
	cases := map[string]bool{
		"":            true,
		"information": true,
		"trace":       true,
		"debug":       true,
		"warning":     true,
		"error":       true,
		"nonsense":    false,
	}
	for level, ok := range cases {
		_, err := LoggingConfig{Level: level}.ResolveLevel()
		if ok {
			assert.NoError(t, err, level)
		} else {
			assert.Error(t, err, level)
		}
	}
}
