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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/foresight/services/integration/predictor"
	"github.com/AleutianAI/foresight/services/integration/report"
	"github.com/AleutianAI/foresight/services/integration/synth"
)

func newReportCmd(c *cli) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "report <prediction.json>",
		Short: "Render a saved prediction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pred, err := predictor.LoadPrediction(args[0])
			if err != nil {
				return &exitError{code: ExitError, err: err}
			}
			formatter, err := report.New(format, report.Options{})
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
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Report format: text, markdown, json")
	return cmd
}

func newTestgenCmd(c *cli) *cobra.Command {
	var (
		lang   string
		output string
	)
	cmd := &cobra.Command{
		Use:   "testgen <prediction.json>",
		Short: "Generate an integration test suite from a saved prediction",
		Long: `Generate one test per predicted failure. Each test is skipped until the
failure is marked fixed, so the suite documents open integration risks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := synth.ParseLanguage(lang)
			if err != nil {
				return &exitError{code: ExitError, err: err}
			}
			pred, err := predictor.LoadPrediction(args[0])
			if err != nil {
				return &exitError{code: ExitError, err: err}
			}
			catalog, err := c.loadCatalog()
			if err != nil {
				return &exitError{code: ExitError, err: err}
			}

			if output == "" {
				suite, err := synth.Generate(pred, l, synth.WithCatalog(catalog))
				if err != nil {
					return &exitError{code: ExitError, err: err}
				}
				_, err = c.stdout.Write(suite.Source)
				return err
			}
			if err := writeSuite(pred, l, catalog, output); err != nil {
				return &exitError{code: ExitError, err: err}
			}
			fmt.Fprintf(c.stdout, "%s %s\n", c.style.render(c.style.ok, "wrote"), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "go", "Test language: go, python")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
