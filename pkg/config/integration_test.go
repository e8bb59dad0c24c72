// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pdk/pkg/runner"
)

func TestApplyEnvOverrides_RunnerAndLevel(t *testing.T) {
	cfg := Default()
	ApplyEnvOverrides(&cfg, []string{"PDK_RUNNER=host", "PDK_LOG_LEVEL=warning"})

	assert.Equal(t, runner.ModeHost, cfg.Runner)
	assert.Equal(t, "warning", cfg.Logging.Level)
}

func TestApplyEnvOverrides_Debounce(t *testing.T) {
	cfg := Default()
	ApplyEnvOverrides(&cfg, []string{"PDK_DEBOUNCE_MS=750"})
	assert.Equal(t, 750, cfg.Watch.DebounceMs)
}

func TestApplyEnvOverrides_InvalidDebounceIgnored(t *testing.T) {
	cfg := Default()
	before := cfg.Watch.DebounceMs
	ApplyEnvOverrides(&cfg, []string{"PDK_DEBOUNCE_MS=not-a-number"})
	assert.Equal(t, before, cfg.Watch.DebounceMs)
}

func TestApplyEnvOverrides_NoRedactDisablesMasking(t *testing.T) {
	cfg := Default()
	ApplyEnvOverrides(&cfg, []string{"PDK_NO_REDACT=1"})
	assert.False(t, cfg.Masking.IsEnabled())
}

func TestApplyEnvOverrides_IrrelevantKeysIgnored(t *testing.T) {
	cfg := Default()
	before := cfg
	ApplyEnvOverrides(&cfg, []string{"PATH=/usr/bin", "HOME=/root"})
	assert.Equal(t, before, cfg)
}

func TestVariables_ExtractsPrefixedAndStripsIt(t *testing.T) {
	vars := Variables([]string{"PDK_VAR_FOO=bar", "PDK_VAR_BAZ=qux", "OTHER=nope"})
	assert.Equal(t, map[string]string{"FOO": "bar", "BAZ": "qux"}, vars)
}

func TestSecrets_ExtractsPrefixedAndStripsIt(t *testing.T) {
	secrets := Secrets([]string{"PDK_SECRET_TOKEN=shh", "PDK_VAR_FOO=bar"})
	assert.Equal(t, map[string]string{"TOKEN": "shh"}, secrets)
}
