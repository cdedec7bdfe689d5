// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/foresight/services/integration/model"
)

const rule = "============================================================"

// Text renders the plain-text report.
type Text struct {
	Options
}

// Format renders the report.
func (f *Text) Format(pred *model.IntegrationPrediction) (string, error) {
	return render(f, pred)
}

// Name returns FormatText.
func (f *Text) Name() FormatType {
	return FormatText
}

// FormatStreaming writes the report.
//
// # Description
//
// Layout: a header with the component, pair and failure totals, the
// per-category tallies, then CRITICAL ISSUES and WARNINGS sections in failure
// order. A prediction without failures prints "No integration failures
// predicted" instead of the sections.
func (f *Text) FormatStreaming(pred *model.IntegrationPrediction, w io.Writer) error {
	if err := checkPrediction(pred); err != nil {
		return err
	}
	ew := &errWriter{w: w}

	ew.printf("%s\n", rule)
	ew.printf("INTEGRATION FAILURE PREDICTION\n")
	ew.printf("%s\n\n", rule)
	ew.printf("Total Components: %d\n", pred.TotalComponents)
	ew.printf("Pairs Analyzed: %d\n", pred.TotalPairsAnalyzed)
	ew.printf("Predicted Failures: %d\n", len(pred.PredictedFailures))

	if len(pred.PredictedFailures) == 0 {
		ew.printf("\nNo integration failures predicted\n")
		f.writeOrder(ew)
		return ew.err
	}

	ew.printf("\n")
	for _, c := range categoryLabels {
		ew.printf("  %-28s %d\n", c.Label+":", c.Count(pred))
	}

	sections := []struct {
		title    string
		severity model.Severity
	}{
		{"CRITICAL ISSUES:", model.SeverityCritical},
		{"WARNINGS:", model.SeverityWarning},
	}
	for _, s := range sections {
		failures := pred.BySeverity(s.severity)
		if len(failures) == 0 {
			continue
		}
		ew.printf("\n%s\n", s.title)
		for i, fl := range failures {
			ew.printf("%d. [%s] %s <-> %s\n", i+1, fl.FailureType, fl.ComponentA, fl.ComponentB)
			ew.printf("   %s\n", fl.Description)
			if fl.FixStrategy != "" {
				ew.printf("   Fix: %s\n", fl.FixStrategy)
			}
		}
	}

	f.writeOrder(ew)
	return ew.err
}

func (f *Text) writeOrder(ew *errWriter) {
	if len(f.Order) == 0 {
		return
	}
	ew.printf("\nSuggested Integration Order: %s\n", strings.Join(f.Order, " -> "))
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
