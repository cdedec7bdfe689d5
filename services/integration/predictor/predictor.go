// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package predictor runs every analyzer over a component layout and
// aggregates the findings into one IntegrationPrediction.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/foresight/services/integration/callsite"
	"github.com/AleutianAI/foresight/services/integration/compat"
	"github.com/AleutianAI/foresight/services/integration/deps"
	"github.com/AleutianAI/foresight/services/integration/graph"
	"github.com/AleutianAI/foresight/services/integration/model"
	"github.com/AleutianAI/foresight/services/integration/repository"
	"github.com/AleutianAI/foresight/services/integration/rules"
)

// DefaultWorkers bounds concurrent pair analysis when no option is given.
const DefaultWorkers = 4

// Option configures a Predictor.
type Option func(*Predictor)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Predictor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithWorkers bounds concurrent pair analysis. Values below 1 mean sequential.
func WithWorkers(n int) Option {
	return func(p *Predictor) {
		if n < 1 {
			n = 1
		}
		p.workers = n
	}
}

// WithCatalog sets the pattern rule catalog. Nil is ignored.
func WithCatalog(c *rules.Catalog) Option {
	return func(p *Predictor) {
		if c != nil {
			p.catalog = c
		}
	}
}

// WithTimeoutMargin sets the timeout-cascade safety margin.
func WithTimeoutMargin(seconds, ratio float64) Option {
	return func(p *Predictor) {
		p.marginSeconds = seconds
		p.marginRatio = ratio
	}
}

// WithScanner sets the call-site scanner used by error-propagation analysis.
func WithScanner(s *callsite.Scanner) Option {
	return func(p *Predictor) {
		if s != nil {
			p.scanner = s
		}
	}
}

// Predictor orchestrates one prediction run over a component source.
//
// # Thread Safety
//
// Safe for concurrent use. Analyzers and the catalog are read-only after New.
type Predictor struct {
	source        repository.Source
	logger        *slog.Logger
	workers       int
	catalog       *rules.Catalog
	scanner       *callsite.Scanner
	marginSeconds float64
	marginRatio   float64

	cycles    *compat.Cycle
	dataTypes *compat.DataType
	errProp   *compat.ErrorPropagation
	timeouts  *compat.Timeout

	// checks run per pair, in failure-list order.
	checks []pairCheck
}

// invalidator is implemented by sources that cache between runs.
type invalidator interface {
	Invalidate()
}

// New creates a Predictor.
//
// # Inputs
//
//   - source: Components, contracts and source files. Must not be nil.
//   - opts: Functional options.
//
// # Outputs
//
//   - *Predictor: Ready to run.
//   - error: ErrNilSource when source is nil.
func New(source repository.Source, opts ...Option) (*Predictor, error) {
	if source == nil {
		return nil, ErrNilSource
	}

	p := &Predictor{
		source:        source,
		logger:        slog.Default(),
		workers:       DefaultWorkers,
		marginSeconds: compat.DefaultMarginSeconds,
		marginRatio:   compat.DefaultMarginRatio,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.catalog == nil {
		p.catalog = rules.NewDefault()
	}
	if p.scanner == nil {
		p.scanner = callsite.NewScanner(callsite.WithLogger(p.logger))
	}

	p.cycles = compat.NewCycle(p.catalog)
	p.dataTypes = compat.NewDataType(p.catalog)
	p.errProp = compat.NewErrorPropagation(p.catalog, p.scanner)
	p.timeouts = compat.NewTimeout(p.catalog, p.marginSeconds, p.marginRatio)
	p.checks = p.defaultChecks()
	return p, nil
}

// Result is the full outcome of one run: the prediction plus the graph it
// was derived from.
type Result struct {
	// RunID correlates logs and spans of one run.
	RunID string

	Prediction *model.IntegrationPrediction

	// Graph is nil when the components directory is missing.
	Graph *graph.ComponentGraph

	// AnalyzerErrors lists omitted analyzer invocations.
	AnalyzerErrors []error

	Duration time.Duration
}

// Predict runs every analyzer and returns the aggregated prediction.
func (p *Predictor) Predict(ctx context.Context) (*model.IntegrationPrediction, error) {
	res, err := p.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	return res.Prediction, nil
}

// pair is one unordered component pair, with a < b.
type pair struct {
	a, b string
}

// pairOutcome is the slot filled by one pair's analysis.
type pairOutcome struct {
	failures []model.PredictedFailure
	errs     []error
}

// pairInput is what a pair check sees. For directed checks From calls To;
// otherwise From and To are the sorted pair.
type pairInput struct {
	From, To  string
	Contracts map[string]*model.Contract
	Sources   map[string][]model.SourceFile
}

// pairCheck is one analyzer invocation inside a pair's analysis.
//
// Undirected checks run once per pair. Directed checks run for a→b and then
// b→a, and only when that dependency edge exists.
type pairCheck struct {
	category model.FailureType
	directed bool
	run      func(ctx context.Context, in pairInput) ([]model.PredictedFailure, error)
}

func (p *Predictor) defaultChecks() []pairCheck {
	return []pairCheck{
		{
			category: model.FailureDataFormatMismatch,
			run: func(_ context.Context, in pairInput) ([]model.PredictedFailure, error) {
				return p.dataTypes.Analyze(in.From, in.To, in.Contracts[in.From], in.Contracts[in.To]), nil
			},
		},
		{
			category: model.FailureMissingErrorHandling,
			directed: true,
			run: func(ctx context.Context, in pairInput) ([]model.PredictedFailure, error) {
				return p.errProp.Analyze(ctx, in.From, in.To, in.Sources[in.From])
			},
		},
		{
			category: model.FailureTimeoutCascade,
			directed: true,
			run: func(_ context.Context, in pairInput) ([]model.PredictedFailure, error) {
				return p.timeouts.Analyze(in.From, in.To, in.Contracts[in.From], in.Contracts[in.To]), nil
			},
		},
	}
}

// Analyze runs a full prediction.
//
// # Description
//
// Drops any source cache so every run reads the current files, then
// loads components and contracts, extracts dependency edges, runs the cycle
// detector once and then every pairwise analyzer. The failure list is
// ordered: cycle failures first, then for each sorted unordered pair (a, b)
// data-type, a→b error propagation, a→b timeout, b→a error propagation and
// b→a timeout. Pairs run concurrently but results are slotted by pair index,
// so the order does not depend on the worker count.
//
// A missing components directory yields an all-zero prediction. Analyzer
// errors and panics are logged and the affected category is omitted.
//
// # Outputs
//
//   - *Result: Prediction and supporting data.
//   - error: Non-nil only on context cancellation or an unreadable layout.
func (p *Predictor) Analyze(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With(slog.String("run_id", runID))

	if inv, ok := p.source.(invalidator); ok {
		inv.Invalidate()
	}

	ctx, span := startPredictSpan(ctx, runID)
	defer span.End()
	defer func() {
		var pred *model.IntegrationPrediction
		if res != nil {
			pred = res.Prediction
		}
		setPredictSpanResult(span, pred, err)
		recordPredictMetrics(ctx, time.Since(start), pred, err == nil)
	}()

	components, err := p.source.Components(ctx)
	if errors.Is(err, repository.ErrMissingInput) {
		logger.Warn("no components to analyze", slog.String("error", err.Error()))
		return &Result{
			RunID:      runID,
			Prediction: model.NewIntegrationPrediction(0, 0, nil),
			Duration:   time.Since(start),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}

	contracts, err := p.source.Contracts(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		logger.Warn("contracts unavailable, data-type and timeout analysis skipped",
			slog.String("error", err.Error()))
		contracts = map[string]*model.Contract{}
	}

	ids := make([]string, len(components))
	for i, c := range components {
		ids[i] = c.ID
	}
	sort.Strings(ids)

	sources, err := p.loadSources(ctx, logger, ids)
	if err != nil {
		return nil, err
	}

	extractor := deps.NewExtractor(ids, logger)
	var edges []model.DependencyEdge
	for _, id := range ids {
		edges = append(edges, extractor.Extract(ctx, id, sources[id])...)
	}
	g := graph.Build(ids, edges)

	logger.Info("dependency graph built",
		slog.Int("components", len(ids)),
		slog.Int("edges", g.EdgeCount()),
		slog.Int("contracts", len(contracts)),
	)

	var failures []model.PredictedFailure
	var analyzerErrs []error

	cycleRes := compat.Run(model.FailureCircularDependency, "", "", func() ([]model.PredictedFailure, error) {
		return p.cycles.Analyze(g), nil
	})
	if cycleRes.OK() {
		failures = append(failures, cycleRes.Failures...)
	} else {
		analyzerErrs = append(analyzerErrs, cycleRes.Err)
		logger.Error("cycle analysis failed", slog.String("error", cycleRes.Err.Error()))
		recordAnalyzerError(ctx, model.FailureCircularDependency)
	}

	pairs := sortedPairs(ids)
	outcomes := make([]pairOutcome, len(pairs))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.workers)
	for i, pr := range pairs {
		i, pr := i, pr
		eg.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.analyzePair(gCtx, logger, g, contracts, sources, pr)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("analyze pairs: %w", err)
	}

	for _, o := range outcomes {
		failures = append(failures, o.failures...)
		analyzerErrs = append(analyzerErrs, o.errs...)
	}

	pred := model.NewIntegrationPrediction(len(ids), g.EdgeCount(), failures)
	logger.Info("prediction complete",
		slog.Int("pairs", len(pairs)),
		slog.Int("failures", len(pred.PredictedFailures)),
		slog.Int("analyzer_errors", len(analyzerErrs)),
		slog.Duration("duration", time.Since(start)),
	)

	return &Result{
		RunID:          runID,
		Prediction:     pred,
		Graph:          g,
		AnalyzerErrors: analyzerErrs,
		Duration:       time.Since(start),
	}, nil
}

// loadSources reads every component's files concurrently. Unreadable
// components contribute no files.
func (p *Predictor) loadSources(ctx context.Context, logger *slog.Logger, ids []string) (map[string][]model.SourceFile, error) {
	slots := make([][]model.SourceFile, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			files, err := p.source.Sources(gCtx, id)
			if err != nil {
				if cerr := gCtx.Err(); cerr != nil {
					return cerr
				}
				logger.Warn("component sources unreadable",
					slog.String("component_id", id),
					slog.String("error", err.Error()))
				return nil
			}
			slots[i] = files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	out := make(map[string][]model.SourceFile, len(ids))
	for i, id := range ids {
		out[id] = slots[i]
	}
	return out, nil
}

// analyzePair runs the pairwise analyzers in reference order.
func (p *Predictor) analyzePair(
	ctx context.Context,
	logger *slog.Logger,
	g *graph.ComponentGraph,
	contracts map[string]*model.Contract,
	sources map[string][]model.SourceFile,
	pr pair,
) pairOutcome {
	var out pairOutcome
	collect := func(r compat.Result) {
		if r.OK() {
			out.failures = append(out.failures, r.Failures...)
			return
		}
		out.errs = append(out.errs, r.Err)
		var ae *compat.AnalyzerError
		category := model.FailureType("")
		if errors.As(r.Err, &ae) {
			category = ae.Category
		}
		logger.Error("analyzer failed, category omitted for pair",
			slog.String("failure_type", string(category)),
			slog.String("component_a", pr.a),
			slog.String("component_b", pr.b),
			slog.String("error", r.Err.Error()),
		)
		recordAnalyzerError(ctx, category)
	}

	runCheck := func(c pairCheck, from, to string) {
		in := pairInput{From: from, To: to, Contracts: contracts, Sources: sources}
		collect(compat.Run(c.category, from, to, func() ([]model.PredictedFailure, error) {
			return c.run(ctx, in)
		}))
	}

	for _, c := range p.checks {
		if !c.directed {
			runCheck(c, pr.a, pr.b)
		}
	}
	for _, dir := range [2][2]string{{pr.a, pr.b}, {pr.b, pr.a}} {
		caller, callee := dir[0], dir[1]
		if !g.HasEdge(caller, callee) {
			continue
		}
		for _, c := range p.checks {
			if c.directed {
				runCheck(c, caller, callee)
			}
		}
	}
	return out
}

// sortedPairs enumerates unordered pairs of sorted IDs in lexicographic order.
func sortedPairs(ids []string) []pair {
	var out []pair
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			out = append(out, pair{a: ids[i], b: ids[j]})
		}
	}
	return out
}
