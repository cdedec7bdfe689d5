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

// ForesightConfig is the on-disk configuration (foresight.yaml).
type ForesightConfig struct {
	// Layout locates components, contracts and rule overrides under the root.
	Layout LayoutConfig `yaml:"layout" validate:"required"`

	// Timeout tunes the timeout-cascade analyzer.
	Timeout TimeoutConfig `yaml:"timeout" validate:"required"`

	// Scan controls which source files are read.
	Scan ScanConfig `yaml:"scan" validate:"required"`

	// Workers bounds concurrent pair analysis. 1 means sequential.
	Workers int `yaml:"workers" validate:"gte=1,lte=256"`

	// History enables the prediction history store.
	History HistoryConfig `yaml:"history"`

	// Telemetry selects exporters.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Server configures `foresight serve`.
	Server ServerConfig `yaml:"server"`
}

type LayoutConfig struct {
	ComponentsDir string `yaml:"components_dir" validate:"required"`
	ContractsDir  string `yaml:"contracts_dir" validate:"required"`
	PatternsFile  string `yaml:"patterns_file" validate:"required"`
}

// TimeoutConfig holds the safety margin. A caller is safe when its timeout is
// at least max(callee+MarginSeconds, callee*MarginRatio).
type TimeoutConfig struct {
	MarginSeconds float64 `yaml:"margin_seconds" validate:"gte=0"`
	MarginRatio   float64 `yaml:"margin_ratio" validate:"gte=1"`
}

type ScanConfig struct {
	// Extensions lists source extensions to read. Empty reads every file.
	Extensions []string `yaml:"extensions"`

	// SkipDirs are directory names never descended into.
	SkipDirs []string `yaml:"skip_dirs"`

	// MaxFileBytes caps the size of a single source file.
	MaxFileBytes int64 `yaml:"max_file_bytes" validate:"gt=0"`

	// CacheSize is the number of components whose sources stay cached.
	CacheSize int `yaml:"cache_size" validate:"gte=1"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir" validate:"required_if=Enabled true"`
}

type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=otlp stdout none"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`

	// PredictionsPerMinute rate-limits POST /v1/predictions.
	PredictionsPerMinute int `yaml:"predictions_per_minute" validate:"gte=1"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() ForesightConfig {
	return ForesightConfig{
		Layout: LayoutConfig{
			ComponentsDir: "components",
			ContractsDir:  "contracts",
			PatternsFile:  "orchestration/integration_patterns.yaml",
		},
		Timeout: TimeoutConfig{
			MarginSeconds: 5,
			MarginRatio:   1.5,
		},
		Scan: ScanConfig{
			Extensions: []string{
				".py", ".go", ".rs",
				".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx",
				".java", ".kt", ".scala", ".rb", ".cs", ".php", ".swift",
				".toml", ".mod",
			},
			SkipDirs:     []string{"node_modules", "target", "vendor", "__pycache__", "dist", "build"},
			MaxFileBytes: 2 * 1024 * 1024,
			CacheSize:    256,
		},
		Workers: 4,
		History: HistoryConfig{
			Enabled: false,
			Dir:     ".foresight/history",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "none",
			OTLPEndpoint:   "localhost:4317",
		},
		Server: ServerConfig{
			Addr:                 ":8089",
			PredictionsPerMinute: 30,
		},
	}
}
