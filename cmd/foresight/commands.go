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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/foresight/services/integration/config"
	"github.com/AleutianAI/foresight/services/integration/history"
	"github.com/AleutianAI/foresight/services/integration/predictor"
	"github.com/AleutianAI/foresight/services/integration/repository"
	"github.com/AleutianAI/foresight/services/integration/rules"
	"github.com/AleutianAI/foresight/services/integration/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// cli holds global flags and state shared by every command.
type cli struct {
	root       string
	configPath string
	logLevel   string

	stdout io.Writer
	stderr io.Writer

	cfg    config.ForesightConfig
	logger *slog.Logger
	style  *styler
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{stdout: stdout, stderr: stderr}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "foresight",
		Short: "Predict integration failures between components",
		Long: `Foresight reads a components directory and its API contracts and predicts
where integrating them will fail: data format mismatches, missing error
handling, timeout cascades and circular dependencies.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVar(&c.root, "root", ".", "Project root containing components/ and contracts/")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default <root>/foresight.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(
		newPredictCmd(c),
		newReportCmd(c),
		newTestgenCmd(c),
		newWatchCmd(c),
		newServeCmd(c),
		newHistoryCmd(c),
		newInitCmd(c),
		newVersionCmd(c),
	)
	return root
}

// setup loads .env, the config file and the logger.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	level, err := telemetry.ParseLevel(c.logLevel)
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	c.logger = telemetry.NewLogger(c.stderr, level)
	slog.SetDefault(c.logger)
	c.style = newStyler(c.stdout)

	root, err := filepath.Abs(c.root)
	if err != nil {
		return &exitError{code: ExitError, err: fmt.Errorf("resolve root: %w", err)}
	}
	c.root = root

	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("load .env", slog.String("error", err.Error()))
	}

	path := c.configPath
	if path == "" {
		path = filepath.Join(root, config.FileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	c.cfg = cfg
	c.logger.Debug("configuration loaded",
		slog.String("root", root),
		slog.String("config", path),
		slog.String("command", cmd.Name()))
	return nil
}

func (c *cli) path(rel string) string {
	return config.Resolve(c.root, rel)
}

// newRepository builds the file-backed component source from the config.
func (c *cli) newRepository() (*repository.FSRepository, error) {
	return repository.New(repository.Options{
		ComponentsDir: c.path(c.cfg.Layout.ComponentsDir),
		ContractsDir:  c.path(c.cfg.Layout.ContractsDir),
		Extensions:    c.cfg.Scan.Extensions,
		SkipDirs:      c.cfg.Scan.SkipDirs,
		MaxFileBytes:  c.cfg.Scan.MaxFileBytes,
		CacheSize:     c.cfg.Scan.CacheSize,
		Logger:        c.logger,
	})
}

func (c *cli) loadCatalog() (*rules.Catalog, error) {
	return rules.Load(c.path(c.cfg.Layout.PatternsFile), c.logger)
}

// newPredictor wires repository, catalog and predictor.
func (c *cli) newPredictor() (*predictor.Predictor, *repository.FSRepository, *rules.Catalog, error) {
	repo, err := c.newRepository()
	if err != nil {
		return nil, nil, nil, err
	}
	catalog, err := c.loadCatalog()
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := predictor.New(repo,
		predictor.WithLogger(c.logger),
		predictor.WithWorkers(c.cfg.Workers),
		predictor.WithCatalog(catalog),
		predictor.WithTimeoutMargin(c.cfg.Timeout.MarginSeconds, c.cfg.Timeout.MarginRatio),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, repo, catalog, nil
}

// openHistory opens the configured history store.
func (c *cli) openHistory() (*history.Store, error) {
	cfg := history.DefaultConfig(c.path(c.cfg.History.Dir))
	cfg.Logger = c.logger
	return history.Open(cfg)
}

// initTelemetry installs exporters. The returned function flushes them.
func (c *cli) initTelemetry(ctx context.Context) (*telemetry.Providers, func(), error) {
	providers, err := telemetry.Init(ctx, telemetry.FromConfig(c.cfg.Telemetry, version))
	if err != nil {
		return nil, nil, err
	}
	return providers, func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			c.logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}, nil
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(c.stdout, "foresight %s\n", version)
			return nil
		},
	}
}
