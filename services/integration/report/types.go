// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders predictions for people and machines.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// FormatType names an output format.
type FormatType string

const (
	// FormatText is the plain-text report (default).
	FormatText FormatType = "text"

	// FormatMarkdown is table output.
	FormatMarkdown FormatType = "markdown"

	// FormatJSON is the structured form.
	FormatJSON FormatType = "json"
)

// Formatter renders a prediction. Implementations are pure.
type Formatter interface {
	// Format renders the prediction to a string.
	Format(pred *model.IntegrationPrediction) (string, error)

	// FormatStreaming writes the rendering to w.
	FormatStreaming(pred *model.IntegrationPrediction, w io.Writer) error

	// Name returns the format name.
	Name() FormatType
}

// Options carries optional context shown by the human-readable formats.
type Options struct {
	// Order is a suggested integration order, callees first. Empty omits it.
	Order []string
}

// New returns the formatter for a format name.
func New(name string, opts Options) (Formatter, error) {
	switch FormatType(strings.ToLower(strings.TrimSpace(name))) {
	case FormatText, "":
		return &Text{Options: opts}, nil
	case FormatMarkdown, "md":
		return &Markdown{Options: opts}, nil
	case FormatJSON:
		return &JSON{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", name)
	}
}

// ErrNilPrediction is returned when there is nothing to render.
var ErrNilPrediction = errors.New("nil prediction")

// categoryLabels orders the tallies shown by the text and markdown formats.
var categoryLabels = []struct {
	Label string
	Count func(p *model.IntegrationPrediction) int
}{
	{"Data Type Incompatibilities", func(p *model.IntegrationPrediction) int { return p.DataTypeIncompatibilities }},
	{"Timeout Cascade Risks", func(p *model.IntegrationPrediction) int { return p.TimeoutCascadeRisks }},
	{"Error Propagation Issues", func(p *model.IntegrationPrediction) int { return p.ErrorPropagationIssues }},
	{"Circular Dependencies", func(p *model.IntegrationPrediction) int { return p.CircularDependencies }},
}

func render(f Formatter, pred *model.IntegrationPrediction) (string, error) {
	var sb strings.Builder
	if err := f.FormatStreaming(pred, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func checkPrediction(pred *model.IntegrationPrediction) error {
	if pred == nil {
		return ErrNilPrediction
	}
	return nil
}
