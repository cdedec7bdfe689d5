// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/foresight/services/integration/predictor"
)

// Analyzer runs one prediction.
type Analyzer interface {
	Analyze(ctx context.Context) (*predictor.Result, error)
}

// Invalidator drops cached sources. The file repository implements it.
type Invalidator interface {
	Invalidate()
}

// PredictOnChange returns a Handler that invalidates caches, re-runs the
// analyzer and passes the outcome to onResult. inv may be nil.
func PredictOnChange(an Analyzer, inv Invalidator, logger *slog.Logger, onResult func(*predictor.Result, error)) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, changes []Change) {
		logger.Info("change detected, re-running prediction",
			slog.Int("changes", len(changes)),
			slog.String("first", changes[0].Path),
		)
		if inv != nil {
			inv.Invalidate()
		}
		res, err := an.Analyze(ctx)
		onResult(res, err)
	}
}
