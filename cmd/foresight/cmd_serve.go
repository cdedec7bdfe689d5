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
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/foresight/services/integration/server"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			if err := runServe(ctx, c, addr); err != nil {
				return &exitError{code: ExitError, err: err}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8089)")
	return cmd
}

func runServe(ctx context.Context, c *cli, addr string) error {
	gin.SetMode(gin.ReleaseMode)

	providers, shutdown, err := c.initTelemetry(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	p, _, catalog, err := c.newPredictor()
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(c.logger),
		server.WithCatalog(catalog),
		server.WithRateLimit(c.cfg.Server.PredictionsPerMinute),
		server.WithMetricsHandler(providers.MetricsHandler()),
	}
	if c.cfg.History.Enabled {
		store, err := c.openHistory()
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, server.WithHistory(store))
	}

	return server.New(p, opts...).Run(ctx, addr)
}
