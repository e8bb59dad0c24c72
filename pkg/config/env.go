// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package config

import (
	"strconv"
	"strings"

	"pdk/pkg/runner"
)

const (
	envLogLevel     = "PDK_LOG_LEVEL"
	envRunner       = "PDK_RUNNER"
	envDebounceMs   = "PDK_DEBOUNCE_MS"
	envNoRedact     = "PDK_NO_REDACT"
	envVarPrefix    = "PDK_VAR_"
	envSecretPrefix = "PDK_SECRET_"
)

// ApplyEnvOverrides layers prefix-based environment overrides on top of
// cfg, mutating it in place. PDK_VAR_* and PDK_SECRET_* are not applied
// here — those feed pkg/variables.Resolver and pkg/secrets.Manager
// directly; ExtractPrefixed below pulls them out of the same environ
// slice for that wiring.
func ApplyEnvOverrides(cfg *Config, environ []string) {
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch k {
		case envLogLevel:
			cfg.Logging.Level = v
		case envRunner:
			cfg.Runner = runner.Mode(v)
		case envDebounceMs:
			if ms, err := strconv.Atoi(v); err == nil {
				cfg.Watch.DebounceMs = ms
			}
		case envNoRedact:
			noRedact, err := strconv.ParseBool(v)
			if err != nil {
				noRedact = true // any non-boolean value, including an empty one, still means "set"
			}
			enabled := !noRedact
			cfg.Masking.Enabled = &enabled
		}
	}
}

// ExtractPrefixed pulls every environ entry whose key starts with
// prefix into a map keyed by the name with prefix stripped.
func ExtractPrefixed(environ []string, prefix string) map[string]string {
	out := make(map[string]string)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		out[strings.TrimPrefix(k, prefix)] = v
	}
	return out
}

// Variables extracts PDK_VAR_* overrides from environ.
func Variables(environ []string) map[string]string {
	return ExtractPrefixed(environ, envVarPrefix)
}

// Secrets extracts PDK_SECRET_* overrides from environ.
func Secrets(environ []string) map[string]string {
	return ExtractPrefixed(environ, envSecretPrefix)
}
