// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package deps extracts directed "depends-on" edges between components.
//
// # Description
//
// A component depends on another when its source mentions the other's ID as a
// qualified reference, or when one of its manifests (go.mod, Cargo.toml)
// requires it. Matching tolerates hyphen/underscore variants of the ID, so
// "service-b" is found through "components.service_b" and vice versa.
//
// Extraction is a pure function of text. It never reads the filesystem.
//
// # Thread Safety
//
// An Extractor is immutable after construction and safe for concurrent use.
package deps

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// Variants returns the naming variants of a component ID, original first.
//
// "service-b" yields ["service-b", "service_b"].
func Variants(id string) []string {
	out := []string{id}
	for _, v := range []string{
		strings.ReplaceAll(id, "-", "_"),
		strings.ReplaceAll(id, "_", "-"),
	} {
		if v != id && !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Normalize maps an ID onto its underscore form for variant-insensitive comparison.
func Normalize(id string) string {
	return strings.ReplaceAll(strings.ToLower(id), "-", "_")
}

const (
	identBefore = `(?:^|[^A-Za-z0-9_-])`
	identAfter  = `(?:$|[^A-Za-z0-9_-])`
)

// referencePatterns builds the qualified-reference expressions for one variant.
func referencePatterns(variant string) []*regexp.Regexp {
	v := regexp.QuoteMeta(variant)
	return []*regexp.Regexp{
		// components.<id> / components/<id>
		regexp.MustCompile(identBefore + `components[./\\]` + v + identAfter),
		// import <id> / from <id> import
		regexp.MustCompile(`(?m)^[ \t]*(?:import|from)[ \t]+` + v + identAfter),
		// use <id>::  /  extern crate <id>
		regexp.MustCompile(`(?m)^[ \t]*(?:pub[ \t]+)?use[ \t]+` + v + `::`),
		regexp.MustCompile(`(?m)^[ \t]*extern[ \t]+crate[ \t]+` + v + identAfter),
		// <id>::path
		regexp.MustCompile(`(?:^|[^A-Za-z0-9_:-])` + v + `::`),
		// "some/path/<id>"
		regexp.MustCompile("[\"'`][^\"'`\\s]*/" + v + "[\"'`]"),
	}
}

// patternCacheSize bounds how many component IDs keep compiled patterns.
const patternCacheSize = 1024

var compiledPatterns = func() *lru.Cache[string, []*regexp.Regexp] {
	c, err := lru.New[string, []*regexp.Regexp](patternCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}()

// patternsFor returns the reference patterns for every variant of id,
// compiling them on first use.
func patternsFor(id string) []*regexp.Regexp {
	if cached, ok := compiledPatterns.Get(id); ok {
		return cached
	}
	var patterns []*regexp.Regexp
	for _, v := range Variants(id) {
		patterns = append(patterns, referencePatterns(v)...)
	}
	compiledPatterns.Add(id, patterns)
	return patterns
}

// target is one known component and its compiled reference patterns.
type target struct {
	id       string
	norm     string
	patterns []*regexp.Regexp
}

// Extractor finds references to a fixed set of known components.
type Extractor struct {
	targets []target
	byNorm  map[string]string
	logger  *slog.Logger
}

// NewExtractor compiles reference patterns for every known component.
//
// # Inputs
//
//   - known: All component IDs of the project. Order is irrelevant.
//   - logger: Receives skip diagnostics. Nil uses slog.Default().
func NewExtractor(known []string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	ids := append([]string(nil), known...)
	sort.Strings(ids)

	e := &Extractor{
		byNorm: make(map[string]string, len(ids)),
		logger: logger.With(slog.String("component", "deps")),
	}
	for _, id := range ids {
		t := target{id: id, norm: Normalize(id), patterns: patternsFor(id)}
		e.targets = append(e.targets, t)
		if _, dup := e.byNorm[t.norm]; !dup {
			e.byNorm[t.norm] = id
		}
	}
	return e
}

// Extract returns the edges from caller to every other known component its
// files reference.
//
// # Description
//
// Files are visited in the given order; the first file that references a
// callee is recorded as the edge's evidence. go.mod and Cargo.toml files are
// parsed as manifests, everything else is scanned as text. A manifest that
// does not parse is skipped.
//
// # Outputs
//
//   - []model.DependencyEdge: One edge per callee, sorted by callee.
func (e *Extractor) Extract(ctx context.Context, caller string, files []model.SourceFile) []model.DependencyEdge {
	callerNorm := Normalize(caller)
	found := map[string]model.DependencyEdge{}

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		if len(found) == len(e.targets) {
			break
		}

		switch path.Base(f.Path) {
		case "go.mod":
			for _, callee := range e.fromGoMod(f) {
				e.record(found, caller, callerNorm, callee, model.EvidenceManifest, f.Path)
			}
			continue
		case "Cargo.toml":
			for _, callee := range e.fromCargo(f) {
				e.record(found, caller, callerNorm, callee, model.EvidenceManifest, f.Path)
			}
			continue
		}

		text := string(f.Content)
		for _, t := range e.targets {
			if t.norm == callerNorm {
				continue
			}
			if _, ok := found[t.id]; ok {
				continue
			}
			if matchesAny(t.patterns, text) {
				found[t.id] = model.DependencyEdge{
					Caller:   caller,
					Callee:   t.id,
					Evidence: model.EvidenceSource,
					File:     f.Path,
				}
			}
		}
	}

	edges := make([]model.DependencyEdge, 0, len(found))
	for _, edge := range found {
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Callee < edges[j].Callee })
	return edges
}

// References reports whether text contains a qualified reference to id.
// Patterns are compiled once per id and shared with every Extractor.
func References(text, id string) bool {
	return matchesAny(patternsFor(id), text)
}

// lookup resolves a manifest name to a known component ID.
func (e *Extractor) lookup(name string) (string, bool) {
	id, ok := e.byNorm[Normalize(name)]
	return id, ok
}

func (e *Extractor) record(found map[string]model.DependencyEdge, caller, callerNorm, callee string, kind model.EvidenceKind, file string) {
	if Normalize(callee) == callerNorm {
		return
	}
	if _, ok := found[callee]; ok {
		return
	}
	found[callee] = model.DependencyEdge{Caller: caller, Callee: callee, Evidence: kind, File: file}
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
