// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates foresight.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up at the project root.
const FileName = "foresight.yaml"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the config at path, falling back to defaults when the file does
// not exist. Environment overrides are applied last, then the result is
// validated.
//
// # Inputs
//
//   - path: Config file path. Empty means "<root>/foresight.yaml" is not consulted.
//
// # Outputs
//
//   - ForesightConfig: The effective configuration.
//   - error: Non-nil if the file is unreadable, malformed, or invalid.
func Load(path string) (ForesightConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadForRoot loads <root>/foresight.yaml.
func LoadForRoot(root string) (ForesightConfig, error) {
	return Load(filepath.Join(root, FileName))
}

// Validate checks struct constraints.
func Validate(cfg ForesightConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// WriteDefault writes the default config to path, creating parent dirs.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnv applies FORESIGHT_* overrides. Unparseable numbers are ignored.
func applyEnv(cfg *ForesightConfig) {
	if v := os.Getenv("FORESIGHT_COMPONENTS_DIR"); v != "" {
		cfg.Layout.ComponentsDir = v
	}
	if v := os.Getenv("FORESIGHT_CONTRACTS_DIR"); v != "" {
		cfg.Layout.ContractsDir = v
	}
	if v := os.Getenv("FORESIGHT_PATTERNS_FILE"); v != "" {
		cfg.Layout.PatternsFile = v
	}
	if v := os.Getenv("FORESIGHT_TIMEOUT_MARGIN_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Timeout.MarginSeconds = f
		}
	}
	if v := os.Getenv("FORESIGHT_TIMEOUT_MARGIN_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Timeout.MarginRatio = f
		}
	}
	if v := os.Getenv("FORESIGHT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("FORESIGHT_HISTORY_DIR"); v != "" {
		cfg.History.Enabled = true
		cfg.History.Dir = v
	}
	if v := os.Getenv("OTEL_TRACES_EXPORTER"); v != "" {
		cfg.Telemetry.TraceExporter = strings.ToLower(v)
	}
	if v := os.Getenv("OTEL_METRICS_EXPORTER"); v != "" {
		cfg.Telemetry.MetricExporter = strings.ToLower(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
}

// Resolve joins rel onto root unless rel is already absolute.
func Resolve(root, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(root, rel)
}
