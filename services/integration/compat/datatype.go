// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compat contains the pairwise compatibility analyzers.
//
// # Description
//
// Each analyzer inspects one component pair and returns zero or more
// PredictedFailures. DataType runs over every pair; ErrorPropagation and
// Timeout only run along detected edges. Cycle turns the graph's cycles into
// failures. Callers wrap each invocation with Run, which converts errors and
// panics into an AnalyzerError so one bad pair never aborts a prediction.
//
// # Thread Safety
//
// All analyzers are immutable after construction and safe for concurrent use.
package compat

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-openapi/strfmt"

	"github.com/AleutianAI/foresight/services/integration/model"
	"github.com/AleutianAI/foresight/services/integration/repository"
	"github.com/AleutianAI/foresight/services/integration/rules"
)

// DateFamily is a date/time vocabulary named in a contract description.
type DateFamily string

const (
	DateISO8601   DateFamily = "ISO8601"
	DateUnixMilli DateFamily = "Unix timestamp (milliseconds)"
	DateUnix      DateFamily = "Unix timestamp"
	DateRFC1123   DateFamily = "RFC1123"
)

// dateVocabulary is checked in order; the first match names the family.
var dateVocabulary = []struct {
	family  DateFamily
	pattern *regexp.Regexp
}{
	{DateISO8601, regexp.MustCompile(`(?i)\biso[-_ ]?8601\b|\brfc[-_ ]?3339\b`)},
	{DateUnixMilli, regexp.MustCompile(`(?i)\b(?:unix|epoch)\b[\w -]{0,24}\b(?:millis\w*|ms)\b`)},
	{DateUnix, regexp.MustCompile(`(?i)\bunix[-_ ]?(?:time|timestamp|epoch|seconds)?\b|\bepoch\b|\bposix time\b`)},
	{DateRFC1123, regexp.MustCompile(`(?i)\brfc[-_ ]?(?:1123|2822|822|7231)\b|\bhttp[- ]date\b`)},
}

// DetectDateFamily returns the date vocabulary a description names, or "".
func DetectDateFamily(description string) DateFamily {
	for _, v := range dateVocabulary {
		if v.pattern.MatchString(description) {
			return v.family
		}
	}
	return ""
}

// NormalizeFormat folds case and drops '-' and '_' ("date-time" == "DateTime").
func NormalizeFormat(format string) string {
	return strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(format)))
}

// DataType detects data format mismatches between two contracts.
type DataType struct {
	catalog *rules.Catalog
	formats strfmt.Registry
}

// NewDataType creates the analyzer. A nil catalog uses the defaults.
func NewDataType(catalog *rules.Catalog) *DataType {
	return &DataType{catalog: catalogOrDefault(catalog), formats: strfmt.Default}
}

// Analyze compares the contracts of a and b.
//
// # Description
//
// Two independent checks, each producing at most one failure:
//
//  1. Date vocabulary: both descriptions name a date family and they differ.
//  2. Shared schema fields: a field present in both schema sections has a
//     different type, or a different normalized format that the declared
//     examples do not reconcile.
//
// # Outputs
//
//   - []model.PredictedFailure: Zero, one or two data_format_mismatch failures.
//     None when either contract is nil.
func (d *DataType) Analyze(a, b string, ca, cb *model.Contract) []model.PredictedFailure {
	if ca == nil || cb == nil {
		return nil
	}
	var out []model.PredictedFailure

	fa, fb := DetectDateFamily(ca.Description), DetectDateFamily(cb.Description)
	if fa != "" && fb != "" && fa != fb {
		out = append(out, newFailure(d.catalog, model.FailureDataFormatMismatch, a, b,
			fmt.Sprintf("Date format mismatch: %s uses %s, %s uses %s", a, fa, b, fb)))
	}

	if diffs := d.fieldMismatches(ca, cb); len(diffs) > 0 {
		out = append(out, newFailure(d.catalog, model.FailureDataFormatMismatch, a, b,
			fmt.Sprintf("Schema field mismatch between %s and %s: %s", a, b, strings.Join(diffs, "; "))))
	}
	return out
}

// fieldMismatches lists one entry per incompatible shared field name.
func (d *DataType) fieldMismatches(ca, cb *model.Contract) []string {
	fieldsA := repository.SchemaFields(ca)
	fieldsB := repository.SchemaFields(cb)

	names := make([]string, 0)
	for name := range fieldsA {
		if _, ok := fieldsB[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var diffs []string
	for _, name := range names {
		diffs = append(diffs, d.declMismatches(name, fieldsA[name], fieldsB[name])...)
	}
	return diffs
}

// declMismatches compares the declarations of one field name.
//
// Declarations on the same entity are compared pairwise. Only when no entity
// declares the field on both sides are the declarations compared across
// entities, and then the first incompatible combination is reported.
func (d *DataType) declMismatches(name string, declsA, declsB []repository.FieldDecl) []string {
	var diffs []string
	sameEntity := false
	for _, da := range declsA {
		for _, db := range declsB {
			if da.Entity != db.Entity {
				continue
			}
			sameEntity = true
			if !d.compatible(da.Spec, db.Spec) {
				diffs = append(diffs, fmt.Sprintf("%s.%s (%s vs %s)",
					da.Entity, name, signature(da.Spec), signature(db.Spec)))
			}
		}
	}
	if sameEntity {
		return diffs
	}

	for _, da := range declsA {
		for _, db := range declsB {
			if !d.compatible(da.Spec, db.Spec) {
				return []string{fmt.Sprintf("%s.%s vs %s.%s (%s vs %s)",
					da.Entity, name, db.Entity, name, signature(da.Spec), signature(db.Spec))}
			}
		}
	}
	return nil
}

// compatible reports whether two field declarations agree.
func (d *DataType) compatible(a, b model.FieldSpec) bool {
	if !strings.EqualFold(strings.TrimSpace(a.Type), strings.TrimSpace(b.Type)) {
		return false
	}
	fa, fb := NormalizeFormat(a.Format), NormalizeFormat(b.Format)

	if fa == fb {
		// same format: each side's example must satisfy it
		return d.accepts(a.Format, b.Example) && d.accepts(b.Format, a.Example)
	}

	// differing names may still be the same shape ("uuid" vs "uuid4")
	if a.Example == "" || b.Example == "" || a.Format == "" || b.Format == "" {
		return false
	}
	if !d.known(a.Format) || !d.known(b.Format) {
		return false
	}
	return d.formats.Validates(a.Format, a.Example) &&
		d.formats.Validates(a.Format, b.Example) &&
		d.formats.Validates(b.Format, a.Example) &&
		d.formats.Validates(b.Format, b.Example)
}

// accepts reports whether example satisfies format. Unknown formats and
// missing examples are accepted.
func (d *DataType) accepts(format, example string) bool {
	if format == "" || example == "" || !d.known(format) {
		return true
	}
	return d.formats.Validates(format, example)
}

func (d *DataType) known(format string) bool {
	return d.formats.ContainsName(format)
}

func signature(f model.FieldSpec) string {
	if f.Format == "" {
		return f.Type
	}
	return f.Type + "/" + f.Format
}
