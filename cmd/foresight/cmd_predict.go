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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/foresight/services/integration/history"
	"github.com/AleutianAI/foresight/services/integration/model"
	"github.com/AleutianAI/foresight/services/integration/predictor"
	"github.com/AleutianAI/foresight/services/integration/report"
	"github.com/AleutianAI/foresight/services/integration/rules"
	"github.com/AleutianAI/foresight/services/integration/synth"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

type predictFlags struct {
	json    bool
	format  string
	output  string
	tests   string
	lang    string
	failOn  string
	history bool
	timeout time.Duration
}

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

func newPredictCmd(c *cli) *cobra.Command {
	var f predictFlags
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict integration failures for the project",
		Long: `Scan every component and contract under the project root and report the
integration failures predicted between each pair of components.

Exit codes:
  0  No failures at or above --fail-on
  1  Failures at or above --fail-on
  2  Error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd.Context(), c, f)
		},
	}

	cmd.Flags().BoolVar(&f.json, "json", false, "Shorthand for --format json")
	cmd.Flags().StringVar(&f.format, "format", "text", "Report format: text, markdown, json")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Also save the prediction as JSON to this file")
	cmd.Flags().StringVar(&f.tests, "tests", "", "Write a generated integration test suite to this file")
	cmd.Flags().StringVar(&f.lang, "lang", "go", "Generated test language: go, python")
	cmd.Flags().StringVar(&f.failOn, "fail-on", "critical", "Exit 1 when failures reach this severity: critical, warning, none")
	cmd.Flags().BoolVar(&f.history, "history", false, "Record the run in the history store and print the delta")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Minute, "Abort the run after this long")
	return cmd
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runPredict(ctx context.Context, c *cli, f predictFlags) error {
	threshold, gate, err := parseThreshold(f.failOn)
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	format := f.format
	if f.json {
		format = string(report.FormatJSON)
	}
	var lang synth.Language
	if f.tests != "" {
		if lang, err = synth.ParseLanguage(f.lang); err != nil {
			return &exitError{code: ExitError, err: err}
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	_, shutdown, err := c.initTelemetry(ctx)
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	defer shutdown()

	p, _, catalog, err := c.newPredictor()
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	res, err := p.Analyze(ctx)
	if err != nil {
		return &exitError{code: ExitError, err: fmt.Errorf("prediction failed: %w", err)}
	}
	pred := res.Prediction

	formatter, err := report.New(format, report.Options{Order: integrationOrder(res)})
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	out, err := formatter.Format(pred)
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	if formatter.Name() == report.FormatText {
		out = c.style.colorize(out)
	}
	fmt.Fprintln(c.stdout, out)

	if f.output != "" {
		if err := predictor.SavePrediction(pred, f.output); err != nil {
			return &exitError{code: ExitError, err: err}
		}
		c.logger.Info("prediction saved", slog.String("path", f.output))
	}
	if f.tests != "" {
		if err := writeSuite(pred, lang, catalog, f.tests); err != nil {
			return &exitError{code: ExitError, err: err}
		}
		c.logger.Info("test suite written", slog.String("path", f.tests))
	}
	if f.history || c.cfg.History.Enabled {
		if err := recordRun(ctx, c, res, formatter.Name() != report.FormatJSON); err != nil {
			return &exitError{code: ExitError, err: err}
		}
	}

	if gate && pred.CountAtLeast(threshold) > 0 {
		return &exitError{code: ExitFindings}
	}
	return nil
}

// integrationOrder returns callees-first order, or nil when there is a cycle.
func integrationOrder(res *predictor.Result) []string {
	if res.Graph == nil {
		return nil
	}
	order, ok := res.Graph.TopologicalOrder()
	if !ok {
		return nil
	}
	return order
}

func writeSuite(pred *model.IntegrationPrediction, lang synth.Language, catalog *rules.Catalog, path string) error {
	suite, err := synth.Generate(pred, lang, synth.WithCatalog(catalog))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create test directory: %w", err)
		}
	}
	if err := os.WriteFile(path, suite.Source, 0o644); err != nil {
		return fmt.Errorf("write test suite: %w", err)
	}
	return nil
}

// recordRun stores the run and optionally prints what changed since the
// previous one.
func recordRun(ctx context.Context, c *cli, res *predictor.Result, showDelta bool) error {
	store, err := c.openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	var prev *model.IntegrationPrediction
	if entry, err := store.Latest(ctx); err == nil {
		prev = entry.Prediction
	}
	if _, err := store.Record(ctx, res.RunID, res.Prediction, time.Now()); err != nil {
		return err
	}
	if prev != nil && showDelta {
		fmt.Fprintln(c.stdout)
		c.style.printDelta(c.stdout, history.Compare(prev, res.Prediction))
	}
	return nil
}
