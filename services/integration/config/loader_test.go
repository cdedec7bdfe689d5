// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Timeout, cfg.Timeout)
	assert.Equal(t, "components", cfg.Layout.ComponentsDir)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `
timeout:
  margin_seconds: 2
  margin_ratio: 2.0
workers: 1
layout:
  components_dir: src
  contracts_dir: api
  patterns_file: rules.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Timeout.MarginSeconds)
	assert.Equal(t, 2.0, cfg.Timeout.MarginRatio)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "src", cfg.Layout.ComponentsDir)
	// untouched sections keep defaults
	assert.Equal(t, DefaultConfig().Scan.MaxFileBytes, cfg.Scan.MaxFileBytes)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("timeout:\n  margin_ratio: 0.5\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("workers: [unterminated"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FORESIGHT_TIMEOUT_MARGIN_SECONDS", "7")
	t.Setenv("FORESIGHT_WORKERS", "2")
	t.Setenv("FORESIGHT_HISTORY_DIR", "/tmp/foresight-history")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7.0, cfg.Timeout.MarginSeconds)
	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/foresight-history", cfg.History.Dir)
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Layout, cfg.Layout)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("/root", "components"), Resolve("/root", "components"))
	assert.Equal(t, "/abs/contracts", Resolve("/root", "/abs/contracts"))
}
