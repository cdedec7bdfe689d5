// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"sort"
	"strings"
)

// Cycle is a dependency cycle in canonical rotation: Members[0] is the
// lexicographically smallest member and each member depends on the next,
// with the last depending on the first.
type Cycle struct {
	Members []string `json:"members"`
}

// Key identifies the cycle independent of the node it was discovered from.
func (c Cycle) Key() string {
	return strings.Join(c.Members, "\x00")
}

// Adjacent returns the canonical first member and its successor.
func (c Cycle) Adjacent() (string, string) {
	if len(c.Members) < 2 {
		return "", ""
	}
	return c.Members[0], c.Members[1]
}

// Path renders the cycle as "a -> b -> c -> a".
func (c Cycle) Path() string {
	if len(c.Members) == 0 {
		return ""
	}
	return strings.Join(append(append([]string(nil), c.Members...), c.Members[0]), " -> ")
}

const (
	unvisited = iota
	onStack
	done
)

// FindCycles finds dependency cycles of length two or more.
//
// # Description
//
// Depth-first traversal over components in sorted order, following sorted
// adjacency, while maintaining the recursion stack. Reaching a component that
// is already on the stack closes a cycle: the stack slice from that component
// to the current one. Each cycle is rotated to start at its smallest member
// and deduplicated, so A→B→A and B→A→B register once.
//
// Every component is visited once, so a strongly connected region may report
// fewer cycles than it contains; at least one per region is always found.
//
// # Outputs
//
//   - []Cycle: Distinct cycles in discovery order.
func (g *ComponentGraph) FindCycles() []Cycle {
	state := make(map[string]int, len(g.nodes))
	stack := make([]string, 0)
	position := make(map[string]int)
	seen := make(map[string]bool)
	var cycles []Cycle

	var visit func(v string)
	visit = func(v string) {
		state[v] = onStack
		position[v] = len(stack)
		stack = append(stack, v)

		for _, w := range g.nodes[v].DependsOn {
			switch state[w] {
			case onStack:
				members := append([]string(nil), stack[position[w]:]...)
				if len(members) < 2 {
					continue
				}
				c := canonical(members)
				if !seen[c.Key()] {
					seen[c.Key()] = true
					cycles = append(cycles, c)
				}
			case unvisited:
				visit(w)
			}
		}

		stack = stack[:len(stack)-1]
		delete(position, v)
		state[v] = done
	}

	for _, v := range g.Components() {
		if state[v] == unvisited {
			visit(v)
		}
	}
	return cycles
}

// canonical rotates members so the smallest comes first.
func canonical(members []string) Cycle {
	minIdx := 0
	for i, m := range members {
		if m < members[minIdx] {
			minIdx = i
		}
	}
	rotated := make([]string, 0, len(members))
	rotated = append(rotated, members[minIdx:]...)
	rotated = append(rotated, members[:minIdx]...)
	return Cycle{Members: rotated}
}

// TopologicalOrder returns an integration order in which every callee comes
// before its callers.
//
// # Description
//
// Kahn's algorithm over reversed edges. Among ready components the smallest
// ID is taken first, so the order is deterministic.
//
// # Outputs
//
//   - []string: The order, or nil when the graph has a cycle.
//   - bool: False if the graph has a cycle.
func (g *ComponentGraph) TopologicalOrder() ([]string, bool) {
	pending := make(map[string]int, len(g.nodes))
	var ready []string
	for _, id := range g.Components() {
		pending[id] = len(g.nodes[id].DependsOn)
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, caller := range g.nodes[id].DependedOnBy {
			pending[caller]--
			if pending[caller] == 0 {
				ready = append(ready, caller)
				sort.Strings(ready)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, false
	}
	return order, true
}
