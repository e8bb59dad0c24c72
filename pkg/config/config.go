// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine that normalizes GitHub Actions
and Azure DevOps YAML into a common model and executes it locally.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package config defines PDK's configuration schema and a single-file
// loader/validator for it. Upward discovery across `.pdkrc` /
// `pdk.config.json` from the working directory to the user's home
// directory, and layering discovered files together, is left to the
// caller; this package only decodes and validates one file at a time.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pdk/pkg/filter"
	"pdk/pkg/logging"
	"pdk/pkg/runner"
)

// ErrConfigNotFound is returned when the config file does not exist at the given path.
var ErrConfigNotFound = errors.New("pdk config not found")

// MinDebounce and MaxDebounce bound watch.debounceMs.
const (
	MinDebounce = 100
	MaxDebounce = 10000
)

// Config is the top-level PDK configuration.
type Config struct {
	Runner    runner.Mode              `yaml:"runner" json:"runner"`
	Timeout   int                      `yaml:"timeout" json:"timeout"` // seconds
	Watch     WatchConfig              `yaml:"watch,omitempty" json:"watch,omitempty"`
	Logging   LoggingConfig            `yaml:"logging,omitempty" json:"logging,omitempty"`
	Variables map[string]string        `yaml:"variables,omitempty" json:"variables,omitempty"`
	Presets   map[string]filter.Preset `yaml:"presets,omitempty" json:"presets,omitempty"`
	Masking   MaskingConfig            `yaml:"masking,omitempty" json:"masking,omitempty"`
}

// WatchConfig configures the file-watch/re-run loop.
type WatchConfig struct {
	DebounceMs int `yaml:"debounceMs" json:"debounceMs"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"` // trace|debug|information|warning|error
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // text|json
}

// MaskingConfig toggles secret redaction. Enabled by default: a
// zero-value Config (no masking block present) must still mask, so the
// YAML/JSON field is a pointer distinguishing "absent" from "false".
type MaskingConfig struct {
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether masking is active, defaulting to true.
func (m MaskingConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// ResolveLevel translates the configured level name into a
// pkg/logging.Level. PDK's logger has four levels (debug/info/warn/
// error); "trace" is accepted as a configuration-surface synonym for
// "debug" and "information" for "info", since neither the logging
// backend nor anything downstream distinguishes a fifth level.
func (l LoggingConfig) ResolveLevel() (logging.Level, error) {
	switch strings.ToLower(l.Level) {
	case "", "information", "info":
		return logging.LevelInfo, nil
	case "trace", "debug":
		return logging.LevelDebug, nil
	case "warning", "warn":
		return logging.LevelWarn, nil
	case "error":
		return logging.LevelError, nil
	default:
		return 0, fmt.Errorf("logging.level: unknown level %q", l.Level)
	}
}

// ResolveFormat translates the configured format name into a
// pkg/logging.Format.
func (l LoggingConfig) ResolveFormat() (logging.Format, error) {
	switch strings.ToLower(l.Format) {
	case "", "text":
		return logging.FormatText, nil
	case "json":
		return logging.FormatJSON, nil
	default:
		return "", fmt.Errorf("logging.format: unknown format %q", l.Format)
	}
}

// DefaultConfigPaths are the file names a caller's config discovery
// looks for, in preference order, within a single candidate directory.
// Load itself reads only the exact path it is given.
var DefaultConfigPaths = []string{".pdkrc", "pdk.config.json"}

// DefaultConfigPath returns the preferred config file name for the
// current working directory.
func DefaultConfigPath() string {
	return DefaultConfigPaths[0]
}

// Exists reports whether a config file exists at the given path.
// It returns (false, nil) if the file does not exist.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Load reads and validates the config at path, decoding as YAML or
// JSON by file extension (".json" decodes as JSON; anything else,
// including ".pdkrc", decodes as YAML).
//
// It returns ErrConfigNotFound if the file does not exist.
func Load(path string) (*Config, error) {
	exists, err := Exists(path)
	if err != nil {
		return nil, fmt.Errorf("checking config existence: %w", err)
	}
	if !exists {
		return nil, ErrConfigNotFound
	}

	// nolint:gosec // G304: reading config file from user-specified path is expected behavior
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with every field at its documented default:
// auto runner selection, a 30-minute job timeout, a 300ms debounce,
// info-level text logging to stdout, and masking enabled.
func Default() Config {
	return Config{
		Runner:  runner.ModeAuto,
		Timeout: 1800,
		Watch:   WatchConfig{DebounceMs: 300},
		Logging: LoggingConfig{Level: "information", Format: "text"},
	}
}

func validate(cfg *Config) error {
	switch cfg.Runner {
	case runner.ModeDocker, runner.ModeHost, runner.ModeAuto, "":
	default:
		return fmt.Errorf("config: runner must be one of docker|host|auto, got %q", cfg.Runner)
	}

	if cfg.Timeout < 0 {
		return errors.New("config: timeout must be non-negative")
	}

	if cfg.Watch.DebounceMs != 0 && (cfg.Watch.DebounceMs < MinDebounce || cfg.Watch.DebounceMs > MaxDebounce) {
		return fmt.Errorf("config: watch.debounceMs must be between %d and %d, got %d", MinDebounce, MaxDebounce, cfg.Watch.DebounceMs)
	}

	if _, err := cfg.Logging.ResolveLevel(); err != nil {
		return err
	}
	if _, err := cfg.Logging.ResolveFormat(); err != nil {
		return err
	}

	for name, preset := range cfg.Presets {
		if name == "" {
			return errors.New("config: preset name must be non-empty")
		}
		if len(preset.Steps) == 0 && len(preset.SkipSteps) == 0 {
			return fmt.Errorf("config: preset %q must configure steps or skipSteps", name)
		}
	}

	return nil
}
