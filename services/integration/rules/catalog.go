// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules holds the pattern rule catalog: per failure category, how to
// fix it and how to test for it.
package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// DocumentKey is the top-level key of the override document.
const DocumentKey = "common_integration_failures"

// PatternRule is the guidance attached to one failure category.
type PatternRule struct {
	// Description explains the category. Optional.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// FixStrategy is one sentence describing the remedy.
	FixStrategy string `yaml:"fix_strategy" json:"fix_strategy"`

	// TestGeneration is one sentence describing what a verification test asserts.
	TestGeneration string `yaml:"test_generation" json:"test_generation"`
}

// document is the on-disk shape of the override file.
type document struct {
	Rules map[string]PatternRule `yaml:"common_integration_failures"`
}

// Catalog maps failure categories to pattern rules.
//
// # Description
//
// Built from the defaults merged with an optional override document. The
// override replaces a default record entirely when keys collide; categories
// unknown to the defaults are kept, so a project can attach guidance for its
// own categories.
//
// # Thread Safety
//
// Read-only after construction. Safe for concurrent reads.
type Catalog struct {
	rules map[string]PatternRule
}

// Defaults returns the built-in rules for the four failure categories.
func Defaults() map[string]PatternRule {
	return map[string]PatternRule{
		string(model.FailureDataFormatMismatch): {
			Description:    "Components exchange data using incompatible formats",
			FixStrategy:    "Standardize on one format (ISO8601 for timestamps, one identifier type per entity) and convert at the boundary",
			TestGeneration: "Round-trip a value produced by one component through the other and assert the format is preserved",
		},
		string(model.FailureMissingErrorHandling): {
			Description:    "A call into another component has no error handling or retry",
			FixStrategy:    "Wrap the call in error handling and add retry with exponential backoff or a circuit breaker",
			TestGeneration: "Inject a failure into the callee and assert the caller handles it without crashing",
		},
		string(model.FailureTimeoutCascade): {
			Description:    "A caller times out before or just after its callee",
			FixStrategy:    "Give the caller a timeout that exceeds the callee's timeout by a safety margin",
			TestGeneration: "Delay the callee to its full timeout and assert the caller still completes within its own timeout",
		},
		string(model.FailureCircularDependency): {
			Description:    "Components depend on each other in a cycle",
			FixStrategy:    "Break the cycle by extracting the shared contract into a separate component or inverting one dependency",
			TestGeneration: "Initialize the components in dependency order and assert none requires a peer that is not yet available",
		},
	}
}

// NewDefault creates a catalog with only the built-in rules.
func NewDefault() *Catalog {
	return &Catalog{rules: Defaults()}
}

// Load creates a catalog from the defaults and the override document at path.
//
// # Inputs
//
//   - path: Override document. A missing file is not an error.
//   - logger: Receives a note when overrides are applied. Nil uses slog.Default().
//
// # Outputs
//
//   - *Catalog: The merged catalog.
//   - error: Non-nil if the file exists but cannot be read or parsed.
func Load(path string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := NewDefault()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read pattern overrides: %w", err)
	}
	overrides, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse pattern overrides %s: %w", path, err)
	}

	c.merge(overrides)
	logger.Debug("pattern overrides applied",
		slog.String("path", path),
		slog.Int("overrides", len(overrides)))
	return c, nil
}

// Parse decodes an override document.
func Parse(data []byte) (map[string]PatternRule, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Rules == nil {
		return map[string]PatternRule{}, nil
	}
	return doc.Rules, nil
}

// merge replaces rules per key.
func (c *Catalog) merge(overrides map[string]PatternRule) {
	for key, rule := range overrides {
		c.rules[key] = rule
	}
}

// Rule returns the rule for a category.
func (c *Catalog) Rule(t model.FailureType) (PatternRule, bool) {
	r, ok := c.rules[string(t)]
	return r, ok
}

// FixStrategy returns the fix strategy for a category, or "" if unknown.
func (c *Catalog) FixStrategy(t model.FailureType) string {
	return c.rules[string(t)].FixStrategy
}

// TestGeneration returns the test guidance for a category, or "" if unknown.
func (c *Catalog) TestGeneration(t model.FailureType) string {
	return c.rules[string(t)].TestGeneration
}

// Categories returns every category key, sorted.
func (c *Catalog) Categories() []string {
	keys := make([]string, 0, len(c.rules))
	for k := range c.rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the catalog as an override document, creating parent dirs.
func (c *Catalog) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	data, err := yaml.Marshal(document{Rules: c.rules})
	if err != nil {
		return fmt.Errorf("marshal pattern rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write pattern rules: %w", err)
	}
	return nil
}
