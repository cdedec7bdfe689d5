// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"time"

	"github.com/AleutianAI/foresight/services/integration/history"
	"github.com/AleutianAI/foresight/services/integration/model"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// PredictionResponse is returned by the prediction endpoints.
type PredictionResponse struct {
	RunID      string                       `json:"run_id"`
	RecordedAt time.Time                    `json:"recorded_at"`
	DurationMs int64                        `json:"duration_ms,omitempty"`
	Prediction *model.IntegrationPrediction `json:"prediction"`

	// Delta is set when history is enabled and a previous run exists.
	Delta *history.Delta `json:"delta,omitempty"`
}

// HistoryResponse is returned by GET /v1/history.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

type reportQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=text markdown md json"`
}

type testsQuery struct {
	Lang string `form:"lang" binding:"omitempty,oneof=go golang python pytest py"`
}

type historyQuery struct {
	Limit int `form:"limit" binding:"gte=1,lte=1000"`
}
