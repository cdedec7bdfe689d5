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
	"context"
	"fmt"

	"github.com/AleutianAI/foresight/services/integration/callsite"
	"github.com/AleutianAI/foresight/services/integration/model"
	"github.com/AleutianAI/foresight/services/integration/rules"
)

// ErrorPropagation detects calls into a callee that have neither error
// handling nor a retry mechanism.
type ErrorPropagation struct {
	catalog *rules.Catalog
	scanner *callsite.Scanner
}

// NewErrorPropagation creates the analyzer. Nil arguments use defaults.
func NewErrorPropagation(catalog *rules.Catalog, scanner *callsite.Scanner) *ErrorPropagation {
	if scanner == nil {
		scanner = callsite.NewScanner()
	}
	return &ErrorPropagation{catalog: catalogOrDefault(catalog), scanner: scanner}
}

// Analyze inspects caller's source for calls into callee.
//
// # Description
//
// Emits one missing_error_handling failure when at least one call site is
// neither handled nor retried. When no call site is found the dependency is
// not exercised and nothing is reported.
//
// # Inputs
//
//   - ctx: Cancels scanning.
//   - caller, callee: The edge being analyzed.
//   - files: The caller's source files.
//
// # Outputs
//
//   - []model.PredictedFailure: Zero or one failure.
//   - error: Non-nil if scanning was cancelled.
func (e *ErrorPropagation) Analyze(ctx context.Context, caller, callee string, files []model.SourceFile) ([]model.PredictedFailure, error) {
	sites, err := e.scanner.Scan(ctx, files, callee)
	if err != nil {
		return nil, err
	}

	var unprotected []callsite.CallSite
	for _, s := range sites {
		if !s.Protected() {
			unprotected = append(unprotected, s)
		}
	}
	if len(unprotected) == 0 {
		return nil, nil
	}

	first := unprotected[0]
	desc := fmt.Sprintf("%s calls %s without error handling or retry (%d of %d call sites unprotected, first at %s:%d %s)",
		caller, callee, len(unprotected), len(sites), first.File, first.Line, first.Target)
	return []model.PredictedFailure{
		newFailure(e.catalog, model.FailureMissingErrorHandling, caller, callee, desc),
	}, nil
}
