// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compat

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/AleutianAI/foresight/services/integration/model"
	"github.com/AleutianAI/foresight/services/integration/rules"
)

// ErrAnalyzerPanic marks an AnalyzerError produced by a recovered panic.
var ErrAnalyzerPanic = errors.New("analyzer panicked")

// AnalyzerError reports one analyzer failing on one pair.
//
// The aggregator logs it and omits that pair/category from the prediction.
type AnalyzerError struct {
	Category   model.FailureType
	ComponentA string
	ComponentB string
	Err        error
}

func (e *AnalyzerError) Error() string {
	return fmt.Sprintf("%s analyzer failed for (%s, %s): %v", e.Category, e.ComponentA, e.ComponentB, e.Err)
}

func (e *AnalyzerError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one analyzer call: failures, or an error.
type Result struct {
	Failures []model.PredictedFailure
	Err      error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Run invokes fn and converts an error or panic into an AnalyzerError.
//
// # Description
//
// This is the isolation boundary between the aggregator and an analyzer. A
// panic inside fn is recovered, wrapped with ErrAnalyzerPanic and the stack,
// and returned in Result.Err. No failures are returned alongside an error.
func Run(category model.FailureType, a, b string, fn func() ([]model.PredictedFailure, error)) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: &AnalyzerError{
				Category:   category,
				ComponentA: a,
				ComponentB: b,
				Err:        fmt.Errorf("%w: %v\n%s", ErrAnalyzerPanic, r, debug.Stack()),
			}}
		}
	}()

	failures, err := fn()
	if err != nil {
		return Result{Err: &AnalyzerError{Category: category, ComponentA: a, ComponentB: b, Err: err}}
	}
	return Result{Failures: failures}
}

// newFailure builds a PredictedFailure with the category's fixed severity and
// the catalog's guidance.
func newFailure(catalog *rules.Catalog, t model.FailureType, a, b, description string) model.PredictedFailure {
	return model.PredictedFailure{
		FailureType:    t,
		ComponentA:     a,
		ComponentB:     b,
		Description:    description,
		Severity:       model.SeverityFor(t),
		FixStrategy:    catalog.FixStrategy(t),
		TestGeneration: catalog.TestGeneration(t),
	}
}

func catalogOrDefault(c *rules.Catalog) *rules.Catalog {
	if c == nil {
		return rules.NewDefault()
	}
	return c
}
