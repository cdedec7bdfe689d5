// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package predictor

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// Package-level tracer and meter for prediction runs.
var (
	tracer = otel.Tracer("foresight.predictor")
	meter  = otel.Meter("foresight.predictor")
)

// Metrics for prediction runs.
var (
	predictLatency    metric.Float64Histogram
	predictTotal      metric.Int64Counter
	failuresByType    metric.Int64Counter
	analyzerErrors    metric.Int64Counter
	componentsScanned metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		predictLatency, err = meter.Float64Histogram(
			"foresight_predict_duration_seconds",
			metric.WithDescription("Duration of prediction runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		predictTotal, err = meter.Int64Counter(
			"foresight_predict_total",
			metric.WithDescription("Total number of prediction runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		failuresByType, err = meter.Int64Counter(
			"foresight_predicted_failures_total",
			metric.WithDescription("Predicted failures by category"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analyzerErrors, err = meter.Int64Counter(
			"foresight_analyzer_errors_total",
			metric.WithDescription("Analyzer invocations that failed and were omitted"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		componentsScanned, err = meter.Int64Histogram(
			"foresight_components",
			metric.WithDescription("Number of components per prediction run"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startPredictSpan creates a span for one prediction run.
func startPredictSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Predictor.Predict",
		trace.WithAttributes(
			attribute.String("foresight.run_id", runID),
		),
	)
}

// setPredictSpanResult sets the result attributes on a prediction span.
func setPredictSpanResult(span trace.Span, pred *model.IntegrationPrediction, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		attribute.Int("foresight.components", pred.TotalComponents),
		attribute.Int("foresight.pairs_analyzed", pred.TotalPairsAnalyzed),
		attribute.Int("foresight.failures", len(pred.PredictedFailures)),
	)
}

// recordPredictMetrics records metrics for one prediction run.
func recordPredictMetrics(ctx context.Context, duration time.Duration, pred *model.IntegrationPrediction, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	predictLatency.Record(ctx, duration.Seconds(), attrs)
	predictTotal.Add(ctx, 1, attrs)

	if pred == nil {
		return
	}
	componentsScanned.Record(ctx, int64(pred.TotalComponents))
	for _, f := range pred.PredictedFailures {
		failuresByType.Add(ctx, 1, metric.WithAttributes(
			attribute.String("failure_type", string(f.FailureType)),
			attribute.String("severity", string(f.Severity)),
		))
	}
}

// recordAnalyzerError records one omitted analyzer invocation.
func recordAnalyzerError(ctx context.Context, category model.FailureType) {
	if err := initMetrics(); err != nil {
		return
	}
	analyzerErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("failure_type", string(category)),
	))
}
