// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the value types shared by the integration-failure
// prediction engine.
//
// # Description
//
// Components and contracts are inputs loaded fresh for every run.
// PredictedFailure and IntegrationPrediction are the outputs; both are
// plain values with JSON tags that match the persisted report format, so a
// prediction written by one run can be decoded by any generic JSON reader.
//
// # Thread Safety
//
// All types are values. Once a run has constructed them they are never
// mutated, so sharing them across goroutines is safe.
package model

// FailureType is a stable failure category.
type FailureType string

const (
	// FailureDataFormatMismatch means two contracts disagree on a date/time
	// vocabulary or on the declared shape of a shared field.
	FailureDataFormatMismatch FailureType = "data_format_mismatch"

	// FailureMissingErrorHandling means a caller invokes a callee with neither
	// an error-handling construct nor a retry mechanism around the call.
	FailureMissingErrorHandling FailureType = "missing_error_handling"

	// FailureTimeoutCascade means a caller's timeout leaves too little headroom
	// over its callee's timeout.
	FailureTimeoutCascade FailureType = "timeout_cascade"

	// FailureCircularDependency means components depend on each other in a cycle.
	FailureCircularDependency FailureType = "circular_dependency"
)

// AllFailureTypes lists the built-in categories in report order.
var AllFailureTypes = []FailureType{
	FailureDataFormatMismatch,
	FailureMissingErrorHandling,
	FailureTimeoutCascade,
	FailureCircularDependency,
}

// Severity is the severity of a predicted failure.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Valid reports whether s is one of the two allowed severities.
func (s Severity) Valid() bool {
	return s == SeverityCritical || s == SeverityWarning
}

// SeverityFor returns the fixed severity of a category.
//
// Cycles and format mismatches are structural and always critical. The
// remaining categories are probabilistic and reported as warnings.
func SeverityFor(t FailureType) Severity {
	switch t {
	case FailureDataFormatMismatch, FailureCircularDependency:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// DefaultTimeoutSeconds is the effective timeout of a contract that declares none.
const DefaultTimeoutSeconds = 30.0

// Component is one independently built unit.
type Component struct {
	// ID is the component identifier (its directory name).
	ID string `json:"id"`

	// Dir is the absolute path of the component's source tree.
	Dir string `json:"dir"`
}

// SourceFile is one readable source file of a component.
type SourceFile struct {
	// Path is the path relative to the component directory, slash separated.
	Path string

	// Content is the raw file content.
	Content []byte
}

// FieldSpec is the declared shape of one schema field.
type FieldSpec struct {
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Format  string `json:"format,omitempty" yaml:"format,omitempty"`
	Example string `json:"example,omitempty" yaml:"example,omitempty"`
}

// Contract is the structured interface document of a component.
type Contract struct {
	// ComponentID is the component this contract describes.
	ComponentID string `json:"component_id"`

	// Source is the path of the document the contract was read from.
	Source string `json:"source,omitempty"`

	// Description is the free-text description.
	Description string `json:"description,omitempty"`

	// Schemas maps entity name to field name to field spec.
	Schemas map[string]map[string]FieldSpec `json:"schemas,omitempty"`

	// TimeoutSeconds is the declared x-timeout, or DefaultTimeoutSeconds.
	TimeoutSeconds float64 `json:"timeout_seconds"`

	// TimeoutDeclared records whether x-timeout was present.
	TimeoutDeclared bool `json:"timeout_declared"`
}

// Timeout returns the effective timeout in seconds.
func (c *Contract) Timeout() float64 {
	if c == nil || !c.TimeoutDeclared {
		return DefaultTimeoutSeconds
	}
	return c.TimeoutSeconds
}

// EvidenceKind describes how a dependency edge was detected.
type EvidenceKind string

const (
	EvidenceSource   EvidenceKind = "source"
	EvidenceManifest EvidenceKind = "manifest"
)

// DependencyEdge is a detected "caller depends on callee" relationship.
type DependencyEdge struct {
	Caller   string       `json:"caller"`
	Callee   string       `json:"callee"`
	Evidence EvidenceKind `json:"evidence"`

	// File is the first file that produced the evidence.
	File string `json:"file,omitempty"`
}

// PredictedFailure is one heuristically inferred integration risk.
type PredictedFailure struct {
	FailureType    FailureType `json:"failure_type"`
	ComponentA     string      `json:"component_a"`
	ComponentB     string      `json:"component_b"`
	Description    string      `json:"description"`
	Severity       Severity    `json:"severity"`
	FixStrategy    string      `json:"fix_strategy"`
	TestGeneration string      `json:"test_generation"`
}

// Key identifies a failure across runs by category and component pair.
func (f PredictedFailure) Key() string {
	return string(f.FailureType) + "|" + f.ComponentA + "|" + f.ComponentB
}

// IntegrationPrediction is the aggregate result of one prediction run.
type IntegrationPrediction struct {
	TotalComponents           int                `json:"total_components"`
	TotalPairsAnalyzed        int                `json:"total_pairs_analyzed"`
	PredictedFailures         []PredictedFailure `json:"predicted_failures"`
	DataTypeIncompatibilities int                `json:"data_type_incompatibilities"`
	TimeoutCascadeRisks       int                `json:"timeout_cascade_risks"`
	ErrorPropagationIssues    int                `json:"error_propagation_issues"`
	CircularDependencies      int                `json:"circular_dependencies"`
}

// NewIntegrationPrediction builds a prediction and derives the category tallies
// from the failure list.
func NewIntegrationPrediction(totalComponents, totalPairs int, failures []PredictedFailure) *IntegrationPrediction {
	if failures == nil {
		failures = []PredictedFailure{}
	}
	p := &IntegrationPrediction{
		TotalComponents:    totalComponents,
		TotalPairsAnalyzed: totalPairs,
		PredictedFailures:  failures,
	}
	for _, f := range failures {
		switch f.FailureType {
		case FailureDataFormatMismatch:
			p.DataTypeIncompatibilities++
		case FailureTimeoutCascade:
			p.TimeoutCascadeRisks++
		case FailureMissingErrorHandling:
			p.ErrorPropagationIssues++
		case FailureCircularDependency:
			p.CircularDependencies++
		}
	}
	return p
}

// BySeverity returns the failures with the given severity, in list order.
func (p *IntegrationPrediction) BySeverity(s Severity) []PredictedFailure {
	var out []PredictedFailure
	for _, f := range p.PredictedFailures {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// CountAtLeast returns the number of failures at or above the given severity.
func (p *IntegrationPrediction) CountAtLeast(s Severity) int {
	if s == SeverityCritical {
		return len(p.BySeverity(SeverityCritical))
	}
	return len(p.PredictedFailures)
}
