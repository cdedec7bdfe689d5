// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/foresight/services/integration/history"
	"github.com/AleutianAI/foresight/services/integration/model"
)

var (
	colorTeal    = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
)

// styler colors output when stdout is a terminal and passes text through
// unchanged otherwise.
type styler struct {
	enabled  bool
	title    lipgloss.Style
	critical lipgloss.Style
	warning  lipgloss.Style
	ok       lipgloss.Style
	muted    lipgloss.Style
}

func newStyler(w io.Writer) *styler {
	s := &styler{enabled: isTerminal(w)}
	if s.enabled {
		s.title = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
		s.critical = lipgloss.NewStyle().Bold(true).Foreground(colorError)
		s.warning = lipgloss.NewStyle().Foreground(colorWarning)
		s.ok = lipgloss.NewStyle().Foreground(colorTeal)
		s.muted = lipgloss.NewStyle().Foreground(colorMuted)
	}
	return s
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (s *styler) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

// colorize highlights the headings of a text report line by line.
func (s *styler) colorize(report string) string {
	if !s.enabled {
		return report
	}
	lines := strings.Split(report, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "INTEGRATION FAILURE PREDICTION":
			lines[i] = s.title.Render(line)
		case trimmed == "CRITICAL ISSUES:":
			lines[i] = s.critical.Render(line)
		case trimmed == "WARNINGS:":
			lines[i] = s.warning.Render(line)
		case strings.HasPrefix(trimmed, "No integration failures predicted"):
			lines[i] = s.ok.Render(line)
		case strings.HasPrefix(trimmed, "Fix:"):
			lines[i] = s.muted.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// printDelta writes the change against the previous recorded run.
func (s *styler) printDelta(w io.Writer, d history.Delta) {
	if d.Empty() {
		fmt.Fprintln(w, s.render(s.muted, "No change since the previous run."))
		return
	}
	for _, f := range d.Introduced {
		fmt.Fprintf(w, "%s %s\n", s.render(s.critical, "+ introduced"), describe(f))
	}
	for _, f := range d.Resolved {
		fmt.Fprintf(w, "%s %s\n", s.render(s.ok, "- resolved  "), describe(f))
	}
}

func describe(f model.PredictedFailure) string {
	return fmt.Sprintf("[%s] %s <-> %s", f.FailureType, f.ComponentA, f.ComponentB)
}

// parseThreshold maps --fail-on onto a severity. "none" never fails.
func parseThreshold(s string) (model.Severity, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return model.SeverityCritical, true, nil
	case "warning":
		return model.SeverityWarning, true, nil
	case "none", "":
		return "", false, nil
	default:
		return "", false, fmt.Errorf("invalid --fail-on %q: want critical, warning or none", s)
	}
}
