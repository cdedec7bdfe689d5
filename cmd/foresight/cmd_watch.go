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
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/foresight/services/integration/predictor"
	"github.com/AleutianAI/foresight/services/integration/report"
	"github.com/AleutianAI/foresight/services/integration/watch"
)

func newWatchCmd(c *cli) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run prediction whenever components or contracts change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := runWatch(ctx, c, debounce); err != nil {
				return &exitError{code: ExitError, err: err}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "Quiet period before a re-run")
	return cmd
}

func runWatch(ctx context.Context, c *cli, debounce time.Duration) error {
	_, shutdown, err := c.initTelemetry(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	p, repo, _, err := c.newPredictor()
	if err != nil {
		return err
	}

	text := &report.Text{}
	show := func(res *predictor.Result, err error) {
		if err != nil {
			c.logger.Error("prediction failed", slog.String("error", err.Error()))
			return
		}
		text.Order = integrationOrder(res)
		out, err := text.Format(res.Prediction)
		if err != nil {
			c.logger.Error("render report", slog.String("error", err.Error()))
			return
		}
		fmt.Fprintf(c.stdout, "%s\n%s\n", c.style.render(c.style.muted, time.Now().Format(time.TimeOnly)), c.style.colorize(out))
	}

	show(p.Analyze(ctx))

	roots := []string{c.path(c.cfg.Layout.ComponentsDir), c.path(c.cfg.Layout.ContractsDir)}
	w, err := watch.New(roots, watch.PredictOnChange(p, repo, c.logger, show), watch.Options{
		Debounce: debounce,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	c.logger.Info("watching for changes", slog.Any("roots", roots))
	<-ctx.Done()
	return nil
}
