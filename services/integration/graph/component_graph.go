// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the component dependency graph and its cycle detector.
package graph

import (
	"sort"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// ComponentNode represents a component in the dependency graph.
type ComponentNode struct {
	// ID is the component identifier.
	ID string

	// DependsOn lists components this component calls, sorted.
	DependsOn []string

	// DependedOnBy lists components that call this component, sorted.
	DependedOnBy []string
}

// ComponentGraph provides component-level dependency tracking.
//
// # Description
//
// Nodes are every known component, including those with no edges. Edges are
// the detected caller → callee relationships. All query results are sorted
// so that traversal order, and therefore detector output, is deterministic.
//
// # Thread Safety
//
// This type is NOT safe for concurrent modification. It is designed
// to be built once and then queried concurrently.
type ComponentGraph struct {
	nodes map[string]*ComponentNode
	edges map[string]map[string]model.DependencyEdge
}

// Stats summarizes the shape of a graph.
type Stats struct {
	Components int `json:"components"`
	Edges      int `json:"edges"`

	// Isolated counts components with neither callers nor callees.
	Isolated int `json:"isolated"`

	// MaxFanOut is the largest number of callees of one component.
	MaxFanOut int `json:"max_fan_out"`

	// MaxFanIn is the largest number of callers of one component.
	MaxFanIn int `json:"max_fan_in"`
}

// New creates an empty graph.
func New() *ComponentGraph {
	return &ComponentGraph{
		nodes: make(map[string]*ComponentNode),
		edges: make(map[string]map[string]model.DependencyEdge),
	}
}

// Build creates a graph over the given components and edges.
//
// # Inputs
//
//   - components: All component IDs; each becomes a node.
//   - edges: Detected edges. Endpoints not in components are added as nodes.
//
// # Outputs
//
//   - *ComponentGraph: The constructed graph.
func Build(components []string, edges []model.DependencyEdge) *ComponentGraph {
	g := New()
	for _, id := range components {
		g.AddComponent(id)
	}
	for _, e := range edges {
		g.AddEdge(e)
	}
	return g
}

// AddComponent adds a node if absent.
func (g *ComponentGraph) AddComponent(id string) *ComponentNode {
	if node, exists := g.nodes[id]; exists {
		return node
	}
	node := &ComponentNode{
		ID:           id,
		DependsOn:    make([]string, 0),
		DependedOnBy: make([]string, 0),
	}
	g.nodes[id] = node
	g.edges[id] = make(map[string]model.DependencyEdge)
	return node
}

// AddEdge adds a caller → callee edge. Self edges and duplicates are ignored.
func (g *ComponentGraph) AddEdge(e model.DependencyEdge) {
	if e.Caller == e.Callee {
		return
	}
	from := g.AddComponent(e.Caller)
	to := g.AddComponent(e.Callee)
	if _, exists := g.edges[e.Caller][e.Callee]; exists {
		return
	}
	g.edges[e.Caller][e.Callee] = e
	from.DependsOn = insertSorted(from.DependsOn, e.Callee)
	to.DependedOnBy = insertSorted(to.DependedOnBy, e.Caller)
}

// Components returns all component IDs, sorted.
func (g *ComponentGraph) Components() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasEdge reports whether caller depends on callee.
func (g *ComponentGraph) HasEdge(caller, callee string) bool {
	_, ok := g.edges[caller][callee]
	return ok
}

// Edge returns the edge from caller to callee.
func (g *ComponentGraph) Edge(caller, callee string) (model.DependencyEdge, bool) {
	e, ok := g.edges[caller][callee]
	return e, ok
}

// Edges returns every edge sorted by (caller, callee).
func (g *ComponentGraph) Edges() []model.DependencyEdge {
	var out []model.DependencyEdge
	for _, caller := range g.Components() {
		for _, callee := range g.nodes[caller].DependsOn {
			out = append(out, g.edges[caller][callee])
		}
	}
	return out
}

// EdgeCount returns the number of distinct ordered pairs with an edge.
func (g *ComponentGraph) EdgeCount() int {
	n := 0
	for _, m := range g.edges {
		n += len(m)
	}
	return n
}

// Dependencies returns the direct callees of a component.
func (g *ComponentGraph) Dependencies(id string) []string {
	node, exists := g.nodes[id]
	if !exists {
		return nil
	}
	return node.DependsOn
}

// Dependents returns the components that call the given component.
func (g *ComponentGraph) Dependents(id string) []string {
	node, exists := g.nodes[id]
	if !exists {
		return nil
	}
	return node.DependedOnBy
}

// Stats computes summary counts.
func (g *ComponentGraph) Stats() Stats {
	s := Stats{Components: len(g.nodes), Edges: g.EdgeCount()}
	for _, node := range g.nodes {
		out, in := len(node.DependsOn), len(node.DependedOnBy)
		if out == 0 && in == 0 {
			s.Isolated++
		}
		if out > s.MaxFanOut {
			s.MaxFanOut = out
		}
		if in > s.MaxFanIn {
			s.MaxFanIn = in
		}
	}
	return s
}

func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	if i < len(list) && list[i] == s {
		return list
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}
