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
	"fmt"
	"math"
	"strconv"

	"github.com/AleutianAI/foresight/services/integration/model"
	"github.com/AleutianAI/foresight/services/integration/rules"
)

// Default safety margin. A caller timeout T_r over a callee timeout T_e is
// safe iff T_r >= max(T_e + DefaultMarginSeconds, T_e * DefaultMarginRatio).
const (
	DefaultMarginSeconds = 5.0
	DefaultMarginRatio   = 1.5
)

// Timeout detects callers whose timeout leaves too little headroom over the
// callee's timeout.
type Timeout struct {
	catalog       *rules.Catalog
	marginSeconds float64
	marginRatio   float64
}

// NewTimeout creates the analyzer. Negative seconds and a non-positive ratio
// use the defaults; a zero seconds margin is kept and a ratio below 1 is
// raised to 1.
func NewTimeout(catalog *rules.Catalog, marginSeconds, marginRatio float64) *Timeout {
	if marginSeconds < 0 {
		marginSeconds = DefaultMarginSeconds
	}
	if marginRatio <= 0 {
		marginRatio = DefaultMarginRatio
	}
	if marginRatio < 1 {
		marginRatio = 1
	}
	return &Timeout{catalog: catalogOrDefault(catalog), marginSeconds: marginSeconds, marginRatio: marginRatio}
}

// Required returns the smallest safe caller timeout for a callee timeout.
func (t *Timeout) Required(callee float64) float64 {
	return math.Max(callee+t.marginSeconds, callee*t.marginRatio)
}

// Safe reports whether a caller timeout is safe over a callee timeout.
func (t *Timeout) Safe(caller, callee float64) bool {
	return caller >= t.Required(callee)
}

// Analyze checks the caller → callee edge.
//
// # Description
//
// Only contracts that both declare x-timeout are compared; the effective
// default of an undeclared timeout never produces a finding.
//
// # Outputs
//
//   - []model.PredictedFailure: Zero or one timeout_cascade failure.
func (t *Timeout) Analyze(caller, callee string, cc, ce *model.Contract) []model.PredictedFailure {
	if cc == nil || ce == nil || !cc.TimeoutDeclared || !ce.TimeoutDeclared {
		return nil
	}
	callerTimeout, calleeTimeout := cc.Timeout(), ce.Timeout()
	if t.Safe(callerTimeout, calleeTimeout) {
		return nil
	}
	desc := fmt.Sprintf("Timeout cascade risk: %s timeout %ss does not leave enough margin over %s timeout %ss (needs at least %ss)",
		caller, seconds(callerTimeout), callee, seconds(calleeTimeout), seconds(t.Required(calleeTimeout)))
	return []model.PredictedFailure{
		newFailure(t.catalog, model.FailureTimeoutCascade, caller, callee, desc),
	}
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
