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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/foresight/services/integration/config"
	"github.com/AleutianAI/foresight/services/integration/rules"
)

func newInitCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default foresight.yaml and pattern catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath := filepath.Join(c.root, config.FileName)
			patterns := c.path(c.cfg.Layout.PatternsFile)

			for _, p := range []string{cfgPath, patterns} {
				if _, err := os.Stat(p); err == nil && !force {
					return &exitError{code: ExitError, err: fmt.Errorf("%s already exists (use --force to overwrite)", p)}
				}
			}

			if err := config.WriteDefault(cfgPath); err != nil {
				return &exitError{code: ExitError, err: err}
			}
			if err := rules.NewDefault().Save(patterns); err != nil {
				return &exitError{code: ExitError, err: err}
			}
			for _, p := range []string{cfgPath, patterns} {
				fmt.Fprintf(c.stdout, "%s %s\n", c.style.render(c.style.ok, "created"), p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}
