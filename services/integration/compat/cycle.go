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

	"github.com/AleutianAI/foresight/services/integration/graph"
	"github.com/AleutianAI/foresight/services/integration/model"
	"github.com/AleutianAI/foresight/services/integration/rules"
)

// Cycle reports dependency cycles.
type Cycle struct {
	catalog *rules.Catalog
}

// NewCycle creates the analyzer. A nil catalog uses the defaults.
func NewCycle(catalog *rules.Catalog) *Cycle {
	return &Cycle{catalog: catalogOrDefault(catalog)}
}

// Analyze emits one circular_dependency failure per distinct cycle.
//
// Each failure names the cycle's canonical first member and its successor,
// which are adjacent in the cycle.
func (c *Cycle) Analyze(g *graph.ComponentGraph) []model.PredictedFailure {
	var out []model.PredictedFailure
	for _, cy := range g.FindCycles() {
		a, b := cy.Adjacent()
		out = append(out, newFailure(c.catalog, model.FailureCircularDependency, a, b,
			fmt.Sprintf("Circular dependency: %s", cy.Path())))
	}
	return out
}
