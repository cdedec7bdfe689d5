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
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/foresight/services/integration/model"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded prediction runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return &exitError{code: ExitError, err: fmt.Errorf("--limit must be at least 1")}
			}
			store, err := c.openHistory()
			if err != nil {
				return &exitError{code: ExitError, err: err}
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return &exitError{code: ExitError, err: err}
			}

			if asJSON {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(c.stdout, "No recorded runs.")
				return nil
			}

			tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RECORDED\tRUN\tCOMPONENTS\tPAIRS\tCRITICAL\tWARNINGS")
			for _, e := range entries {
				p := e.Prediction
				critical := p.CountAtLeast(model.SeverityCritical)
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
					e.RecordedAt.Local().Format(time.DateTime),
					e.RunID,
					p.TotalComponents,
					p.TotalPairsAnalyzed,
					critical,
					len(p.PredictedFailures)-critical)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
