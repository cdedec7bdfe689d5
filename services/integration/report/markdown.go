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
	"io"
	"strings"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// Markdown renders tables.
type Markdown struct {
	Options

	// MaxRows truncates the failure table. Zero means no limit.
	MaxRows int
}

// Format renders the report.
func (f *Markdown) Format(pred *model.IntegrationPrediction) (string, error) {
	return render(f, pred)
}

// Name returns FormatMarkdown.
func (f *Markdown) Name() FormatType {
	return FormatMarkdown
}

// FormatStreaming writes the markdown report.
func (f *Markdown) FormatStreaming(pred *model.IntegrationPrediction, w io.Writer) error {
	if err := checkPrediction(pred); err != nil {
		return err
	}
	ew := &errWriter{w: w}

	ew.printf("## Integration Failure Prediction\n\n")
	ew.printf("| Metric | Count |\n")
	ew.printf("|--------|-------|\n")
	ew.printf("| Total Components | %d |\n", pred.TotalComponents)
	ew.printf("| Pairs Analyzed | %d |\n", pred.TotalPairsAnalyzed)
	ew.printf("| Predicted Failures | %d |\n", len(pred.PredictedFailures))
	for _, c := range categoryLabels {
		ew.printf("| %s | %d |\n", c.Label, c.Count(pred))
	}
	ew.printf("\n")

	if len(pred.PredictedFailures) == 0 {
		ew.printf("No integration failures predicted.\n")
	} else {
		ew.printf("### Failures\n\n")
		ew.printf("| Severity | Type | Components | Description | Fix |\n")
		ew.printf("|----------|------|------------|-------------|-----|\n")

		rows := pred.PredictedFailures
		truncated := 0
		if f.MaxRows > 0 && len(rows) > f.MaxRows {
			truncated = len(rows) - f.MaxRows
			rows = rows[:f.MaxRows]
		}
		for _, fl := range rows {
			ew.printf("| %s | `%s` | %s → %s | %s | %s |\n",
				severityBadge(fl.Severity), fl.FailureType, cell(fl.ComponentA), cell(fl.ComponentB),
				cell(fl.Description), cell(fl.FixStrategy))
		}
		if truncated > 0 {
			ew.printf("\n*%d more failures not shown.*\n", truncated)
		}
	}

	if len(f.Order) > 0 {
		ew.printf("\n### Suggested Integration Order\n\n")
		for i, id := range f.Order {
			ew.printf("%d. `%s`\n", i+1, id)
		}
	}
	return ew.err
}

func severityBadge(s model.Severity) string {
	if s == model.SeverityCritical {
		return "🔴 critical"
	}
	return "🟡 warning"
}

// cell escapes text for a single table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
