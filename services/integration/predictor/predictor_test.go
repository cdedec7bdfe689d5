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
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/foresight/services/integration/compat"
	"github.com/AleutianAI/foresight/services/integration/model"
	"github.com/AleutianAI/foresight/services/integration/repository"
)

// =============================================================================
// Fixtures
// =============================================================================

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type project struct {
	t    *testing.T
	root string
}

func newProject(t *testing.T) *project {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "components"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "contracts"), 0o755))
	return &project{t: t, root: root}
}

func (p *project) component(id string) *project {
	p.t.Helper()
	require.NoError(p.t, os.MkdirAll(filepath.Join(p.root, "components", id), 0o755))
	return p
}

func (p *project) source(id, rel, content string) *project {
	p.t.Helper()
	path := filepath.Join(p.root, "components", id, rel)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0o644))
	return p
}

func (p *project) contract(id, content string) *project {
	p.t.Helper()
	require.NoError(p.t, os.WriteFile(filepath.Join(p.root, "contracts", id+".yaml"), []byte(content), 0o644))
	return p
}

func (p *project) predictor(opts ...Option) *Predictor {
	p.t.Helper()
	repo, err := repository.New(repository.Options{
		ComponentsDir: filepath.Join(p.root, "components"),
		ContractsDir:  filepath.Join(p.root, "contracts"),
		Logger:        quietLogger,
	})
	require.NoError(p.t, err)
	pr, err := New(repo, append([]Option{WithLogger(quietLogger)}, opts...)...)
	require.NoError(p.t, err)
	return pr
}

func (p *project) predict(opts ...Option) *model.IntegrationPrediction {
	p.t.Helper()
	pred, err := p.predictor(opts...).Predict(context.Background())
	require.NoError(p.t, err)
	return pred
}

func importOf(callee string) string {
	return "from components." + callee + " import api\n"
}

func failuresOf(pred *model.IntegrationPrediction, t model.FailureType) []model.PredictedFailure {
	var out []model.PredictedFailure
	for _, f := range pred.PredictedFailures {
		if f.FailureType == t {
			out = append(out, f)
		}
	}
	return out
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_NilSource(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

// =============================================================================
// Empty and trivial layouts
// =============================================================================

func TestPredict_MissingComponentsDir(t *testing.T) {
	repo, err := repository.New(repository.Options{
		ComponentsDir: filepath.Join(t.TempDir(), "absent"),
		ContractsDir:  filepath.Join(t.TempDir(), "absent"),
		Logger:        quietLogger,
	})
	require.NoError(t, err)
	pr, err := New(repo, WithLogger(quietLogger))
	require.NoError(t, err)

	pred, err := pr.Predict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, pred.TotalComponents)
	assert.Equal(t, 0, pred.TotalPairsAnalyzed)
	assert.NotNil(t, pred.PredictedFailures)
	assert.Empty(t, pred.PredictedFailures)
}

func TestPredict_EmptyProject(t *testing.T) {
	pred := newProject(t).predict()

	assert.Equal(t, 0, pred.TotalComponents)
	assert.Equal(t, 0, pred.TotalPairsAnalyzed)
	assert.Empty(t, pred.PredictedFailures)
	assert.Equal(t, 0, pred.CircularDependencies)
}

func TestPredict_SingleComponent(t *testing.T) {
	pred := newProject(t).
		component("service_a").
		source("service_a", "main.py", "def standalone_function():\n    return \"no dependencies\"\n").
		predict()

	assert.Equal(t, 1, pred.TotalComponents)
	assert.Equal(t, 0, pred.TotalPairsAnalyzed)
	assert.Empty(t, pred.PredictedFailures)
}

func TestPredict_TwoComponentsOneEdge(t *testing.T) {
	pred := newProject(t).
		source("service_a", "main.py", importOf("service_b")).
		component("service_b").
		predict()

	assert.Equal(t, 2, pred.TotalComponents)
	assert.Equal(t, 1, pred.TotalPairsAnalyzed)
	assert.Empty(t, pred.PredictedFailures)
}

func TestPredict_PairsCountEdgesNotCombinations(t *testing.T) {
	pred := newProject(t).
		component("a").component("b").component("c").component("d").
		predict()

	assert.Equal(t, 4, pred.TotalComponents)
	assert.Equal(t, 0, pred.TotalPairsAnalyzed)
}

// =============================================================================
// Cycles
// =============================================================================

func TestPredict_TwoCycle(t *testing.T) {
	pred := newProject(t).
		source("service_a", "main.py", importOf("service_b")).
		source("service_b", "main.py", importOf("service_a")).
		predict()

	assert.GreaterOrEqual(t, pred.CircularDependencies, 1)
	cycles := failuresOf(pred, model.FailureCircularDependency)
	require.Len(t, cycles, 1)
	assert.Equal(t, model.SeverityCritical, cycles[0].Severity)
	assert.ElementsMatch(t, []string{"service_a", "service_b"}, []string{cycles[0].ComponentA, cycles[0].ComponentB})
}

func TestPredict_ThreeCycle(t *testing.T) {
	pred := newProject(t).
		source("a", "main.py", importOf("b")).
		source("b", "main.py", importOf("c")).
		source("c", "main.py", importOf("a")).
		predict()

	cycles := failuresOf(pred, model.FailureCircularDependency)
	require.Len(t, cycles, 1)
	assert.Equal(t, "a", cycles[0].ComponentA)
	assert.Equal(t, "b", cycles[0].ComponentB)
	assert.Equal(t, 3, pred.TotalPairsAnalyzed)
}

func TestPredict_ChainHasNoCycle(t *testing.T) {
	pred := newProject(t).
		source("a", "main.py", importOf("b")).
		source("b", "main.py", importOf("c")).
		component("c").
		predict()

	assert.Equal(t, 0, pred.CircularDependencies)
	assert.Equal(t, 2, pred.TotalPairsAnalyzed)
}

// =============================================================================
// Pairwise analyzers
// =============================================================================

func TestPredict_DateFormatMismatch(t *testing.T) {
	pred := newProject(t).
		component("service-a").component("service-b").
		contract("service-a", "description: Uses ISO8601 format for dates\n").
		contract("service-b", "description: Uses Unix timestamp for dates\n").
		predict()

	require.Len(t, pred.PredictedFailures, 1)
	f := pred.PredictedFailures[0]
	assert.Equal(t, model.FailureDataFormatMismatch, f.FailureType)
	assert.Equal(t, model.SeverityCritical, f.Severity)
	assert.Equal(t, "service-a", f.ComponentA)
	assert.Equal(t, "service-b", f.ComponentB)
	assert.Equal(t, 1, pred.DataTypeIncompatibilities)
	assert.Equal(t, 0, pred.TotalPairsAnalyzed)
}

func TestPredict_SchemaMismatchOnSharedEntity(t *testing.T) {
	pred := newProject(t).
		component("service-a").component("service-b").
		contract("service-a", `
components:
  schemas:
    Order:
      properties:
        id: {type: integer}
    User:
      properties:
        id: {type: string, format: uuid}
`).
		contract("service-b", `
components:
  schemas:
    Zed:
      properties:
        id: {type: integer}
    User:
      properties:
        id: {type: integer}
`).
		predict()

	assert.Equal(t, 1, pred.DataTypeIncompatibilities)
	require.Len(t, pred.PredictedFailures, 1)
	assert.Contains(t, pred.PredictedFailures[0].Description, "User.id")
}

func TestPredict_MissingErrorHandling(t *testing.T) {
	pred := newProject(t).
		source("service_a", "main.py", importOf("service_b")+"result = api.call()\n").
		component("service_b").
		predict()

	failures := failuresOf(pred, model.FailureMissingErrorHandling)
	require.Len(t, failures, 1)
	assert.Equal(t, model.SeverityWarning, failures[0].Severity)
	assert.Equal(t, "service_a", failures[0].ComponentA)
	assert.Equal(t, "service_b", failures[0].ComponentB)
	assert.Equal(t, 1, pred.ErrorPropagationIssues)
}

func TestPredict_Timeouts(t *testing.T) {
	tests := []struct {
		name      string
		edge      bool
		caller    string
		callee    string
		wantRisks int
	}{
		{name: "safe margin", edge: true, caller: "30", callee: "10", wantRisks: 0},
		{name: "insufficient margin", edge: true, caller: "10", callee: "9", wantRisks: 1},
		{name: "no edge", edge: false, caller: "10", callee: "9", wantRisks: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProject(t).component("service_a").component("service_b").
				contract("service_a", "x-timeout: "+tt.caller+"\n").
				contract("service_b", "x-timeout: "+tt.callee+"\n")
			if tt.edge {
				p.source("service_a", "main.py", importOf("service_b"))
			}

			pred := p.predict()
			assert.Equal(t, tt.wantRisks, pred.TimeoutCascadeRisks)
			if tt.wantRisks > 0 {
				f := failuresOf(pred, model.FailureTimeoutCascade)[0]
				assert.Equal(t, "service_a", f.ComponentA)
				assert.Equal(t, "service_b", f.ComponentB)
			}
		})
	}
}

func TestPredict_CustomTimeoutMargin(t *testing.T) {
	pred := newProject(t).
		source("service_a", "main.py", importOf("service_b")).
		component("service_b").
		contract("service_a", "x-timeout: 10\n").
		contract("service_b", "x-timeout: 9\n").
		predict(WithTimeoutMargin(0, 1))

	assert.Equal(t, 0, pred.TimeoutCascadeRisks)
}

// =============================================================================
// Ordering and determinism
// =============================================================================

func TestPredict_ReferenceOrder(t *testing.T) {
	pred := newProject(t).
		source("alpha", "main.py", importOf("beta")+"result = api.call()\n").
		source("beta", "main.py", importOf("alpha")+"result = api.call()\n").
		contract("alpha", "description: ISO8601 dates\nx-timeout: 10\n").
		contract("beta", "description: Unix timestamp dates\nx-timeout: 10\n").
		predict()

	var got []string
	for _, f := range pred.PredictedFailures {
		got = append(got, string(f.FailureType)+":"+f.ComponentA+">"+f.ComponentB)
	}
	want := []string{
		"circular_dependency:alpha>beta",
		"data_format_mismatch:alpha>beta",
		"missing_error_handling:alpha>beta",
		"timeout_cascade:alpha>beta",
		"missing_error_handling:beta>alpha",
		"timeout_cascade:beta>alpha",
	}
	assert.Equal(t, want, got)
}

func TestPredict_DeterministicAcrossWorkerCounts(t *testing.T) {
	p := newProject(t)
	names := []string{"billing", "catalog", "checkout", "gateway", "inventory", "users"}
	for i, n := range names {
		next := names[(i+1)%len(names)]
		p.source(n, "main.py", importOf(next)+"result = api.call()\n")
		p.contract(n, "description: ISO8601 dates\nx-timeout: 10\n")
	}
	p.contract("users", "description: Unix timestamp dates\nx-timeout: 12\n")

	sequential := p.predict(WithWorkers(1))
	for i := 0; i < 3; i++ {
		parallel := p.predict(WithWorkers(8))
		if diff := cmp.Diff(sequential, parallel); diff != "" {
			t.Fatalf("prediction differs by worker count (-sequential +parallel):\n%s", diff)
		}
	}
	assert.NotEmpty(t, sequential.PredictedFailures)
}

func TestAnalyze_ResultCarriesGraph(t *testing.T) {
	res, err := newProject(t).
		source("a", "main.py", importOf("b")).
		component("b").
		predictor().Analyze(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	require.NotNil(t, res.Graph)
	assert.True(t, res.Graph.HasEdge("a", "b"))
	assert.Empty(t, res.AnalyzerErrors)
}

func TestPredict_ReusedPredictorSeesEditedSources(t *testing.T) {
	proj := newProject(t).
		source("service-a", "main.py", "print('standalone')\n").
		component("service-b")
	pr := proj.predictor()

	first, err := pr.Predict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, first.TotalPairsAnalyzed)

	proj.source("service-a", "main.py", importOf("service-b"))

	second, err := pr.Predict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalPairsAnalyzed)
}

// =============================================================================
// Fault isolation
// =============================================================================

type fakeSource struct {
	components    []model.Component
	contracts     map[string]*model.Contract
	sources       map[string][]model.SourceFile
	componentsErr error
	contractsErr  error
	sourceErrs    map[string]error
}

func (f *fakeSource) Components(context.Context) ([]model.Component, error) {
	return f.components, f.componentsErr
}

func (f *fakeSource) Contracts(context.Context) (map[string]*model.Contract, error) {
	return f.contracts, f.contractsErr
}

func (f *fakeSource) Sources(_ context.Context, id string) ([]model.SourceFile, error) {
	if err := f.sourceErrs[id]; err != nil {
		return nil, err
	}
	return f.sources[id], nil
}

type invalidatingSource struct {
	fakeSource
	invalidations int
}

func (s *invalidatingSource) Invalidate() { s.invalidations++ }

func TestAnalyze_InvalidatesCachingSource(t *testing.T) {
	src := &invalidatingSource{fakeSource: fakeSource{components: []model.Component{{ID: "a"}}}}
	pr, err := New(src, WithLogger(quietLogger))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := pr.Analyze(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.invalidations)
}

func TestPredict_FailingCheckLeavesOtherPairsIntact(t *testing.T) {
	proj := newProject(t).
		component("alpha").component("beta").component("gamma").
		contract("alpha", "description: Uses ISO8601 format for dates\n").
		contract("beta", "description: Uses Unix timestamp for dates\n").
		contract("gamma", "description: Uses ISO8601 format for dates\n")
	pr := proj.predictor()

	extra := pairCheck{
		category: model.FailureDataFormatMismatch,
		run: func(_ context.Context, in pairInput) ([]model.PredictedFailure, error) {
			switch in.From + "|" + in.To {
			case "alpha|beta":
				panic("schema walker exploded")
			case "alpha|gamma":
				return nil, errors.New("contract unreadable")
			}
			return []model.PredictedFailure{{
				FailureType: model.FailureDataFormatMismatch,
				ComponentA:  in.From,
				ComponentB:  in.To,
				Severity:    model.SeverityWarning,
				Description: "extra finding",
			}}, nil
		},
	}
	pr.checks = append([]pairCheck{extra}, pr.checks...)

	res, err := pr.Analyze(context.Background())
	require.NoError(t, err)

	var got []string
	for _, f := range res.Prediction.PredictedFailures {
		got = append(got, f.ComponentA+"|"+f.ComponentB+"|"+f.Description)
	}
	require.Len(t, got, 3)
	assert.Contains(t, got[0], "alpha|beta|")
	assert.Equal(t, "beta|gamma|extra finding", got[1])
	assert.Contains(t, got[2], "beta|gamma|")
	assert.NotEqual(t, "extra finding", res.Prediction.PredictedFailures[2].Description)

	require.Len(t, res.AnalyzerErrors, 2)
	assert.ErrorIs(t, res.AnalyzerErrors[0], compat.ErrAnalyzerPanic)
	var ae *compat.AnalyzerError
	require.True(t, errors.As(res.AnalyzerErrors[1], &ae))
	assert.Equal(t, "alpha", ae.ComponentA)
	assert.Equal(t, "gamma", ae.ComponentB)
}

func TestPredict_UnreadableSourcesSkipped(t *testing.T) {
	src := &fakeSource{
		components: []model.Component{{ID: "a"}, {ID: "b"}},
		sources: map[string][]model.SourceFile{
			"b": {{Path: "main.py", Content: []byte(importOf("a"))}},
		},
		sourceErrs: map[string]error{"a": errors.New("permission denied")},
	}
	pr, err := New(src, WithLogger(quietLogger))
	require.NoError(t, err)

	pred, err := pr.Predict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pred.TotalComponents)
	assert.Equal(t, 1, pred.TotalPairsAnalyzed)
}

func TestPredict_ContractsErrorSkipsContractAnalysis(t *testing.T) {
	src := &fakeSource{
		components:   []model.Component{{ID: "a"}, {ID: "b"}},
		contractsErr: errors.New("contracts unreadable"),
	}
	pr, err := New(src, WithLogger(quietLogger))
	require.NoError(t, err)

	pred, err := pr.Predict(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pred.PredictedFailures)
}

func TestPredict_ComponentsErrorPropagates(t *testing.T) {
	pr, err := New(&fakeSource{componentsErr: errors.New("io failure")}, WithLogger(quietLogger))
	require.NoError(t, err)

	_, err = pr.Predict(context.Background())
	assert.Error(t, err)
}

func TestPredict_CancelledContext(t *testing.T) {
	src := &fakeSource{components: []model.Component{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	pr, err := New(src, WithLogger(quietLogger))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pr.Predict(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Persistence
// =============================================================================

func TestSaveLoad_RoundTrip(t *testing.T) {
	pred := newProject(t).
		component("service-a").component("service-b").
		contract("service-a", "description: Uses ISO8601 format for dates\n").
		contract("service-b", "description: Uses Unix timestamp for dates\n").
		predict()

	path := filepath.Join(t.TempDir(), "nested", "prediction.json")
	require.NoError(t, SavePrediction(pred, path))

	loaded, err := LoadPrediction(path)
	require.NoError(t, err)
	if diff := cmp.Diff(pred, loaded); diff != "" {
		t.Fatalf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestSavePrediction_WriteError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := SavePrediction(model.NewIntegrationPrediction(0, 0, nil), filepath.Join(blocker, "out.json"))
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, filepath.Join(blocker, "out.json"), pe.Path)
}

func TestLoadPrediction_Missing(t *testing.T) {
	_, err := LoadPrediction(filepath.Join(t.TempDir(), "absent.json"))
	var pe *PersistenceError
	assert.True(t, errors.As(err, &pe))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDecodePrediction_RecomputesTallies(t *testing.T) {
	doc := `{"total_components":2,"total_pairs_analyzed":1,"timeout_cascade_risks":9,
"predicted_failures":[{"failure_type":"timeout_cascade","component_a":"a","component_b":"b","severity":"warning"}]}`

	pred, err := DecodePrediction([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, pred.TimeoutCascadeRisks)
}

func TestDecodePrediction_InvalidSeverity(t *testing.T) {
	doc := `{"predicted_failures":[{"failure_type":"timeout_cascade","severity":"fatal"}]}`
	_, err := DecodePrediction([]byte(doc))
	assert.Error(t, err)
}
