// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deps

import (
	"log/slog"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/modfile"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// cargoDependencyTables are the Cargo.toml tables that declare dependencies.
var cargoDependencyTables = []string{"dependencies", "dev-dependencies", "build-dependencies"}

// fromGoMod returns the known components a go.mod requires or replaces.
//
// A requirement matches when the last element of its module path is a
// component ID variant. A replace matches on either side, so
// `replace example.com/b => ../service-b` also counts.
func (e *Extractor) fromGoMod(f model.SourceFile) []string {
	mf, err := modfile.Parse(f.Path, f.Content, nil)
	if err != nil {
		e.logger.Debug("unparseable go.mod skipped",
			slog.String("path", f.Path),
			slog.String("error", err.Error()))
		return nil
	}

	var out []string
	for _, req := range mf.Require {
		if id, ok := e.lookup(lastElem(req.Mod.Path)); ok {
			out = append(out, id)
		}
	}
	for _, rep := range mf.Replace {
		if id, ok := e.lookup(lastElem(rep.Old.Path)); ok {
			out = append(out, id)
			continue
		}
		if id, ok := e.lookup(lastElem(rep.New.Path)); ok {
			out = append(out, id)
		}
	}
	return out
}

// fromCargo returns the known components a Cargo.toml depends on.
//
// A dependency matches by its key, by an explicit `package` rename, or by the
// last element of a `path` entry. Target-specific tables and
// `[workspace.dependencies]` are included.
func (e *Extractor) fromCargo(f model.SourceFile) []string {
	var doc map[string]any
	if _, err := toml.Decode(string(f.Content), &doc); err != nil {
		e.logger.Debug("unparseable Cargo.toml skipped",
			slog.String("path", f.Path),
			slog.String("error", err.Error()))
		return nil
	}

	var tables []map[string]any
	collect := func(parent map[string]any) {
		for _, name := range cargoDependencyTables {
			if t, ok := parent[name].(map[string]any); ok {
				tables = append(tables, t)
			}
		}
	}
	collect(doc)
	if ws, ok := doc["workspace"].(map[string]any); ok {
		collect(ws)
	}
	if targets, ok := doc["target"].(map[string]any); ok {
		for _, raw := range targets {
			if t, ok := raw.(map[string]any); ok {
				collect(t)
			}
		}
	}

	var out []string
	for _, table := range tables {
		for key, raw := range table {
			if id, ok := e.lookup(key); ok {
				out = append(out, id)
				continue
			}
			spec, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if pkg, ok := spec["package"].(string); ok {
				if id, ok := e.lookup(pkg); ok {
					out = append(out, id)
					continue
				}
			}
			if p, ok := spec["path"].(string); ok {
				if id, ok := e.lookup(lastElem(p)); ok {
					out = append(out, id)
				}
			}
		}
	}
	return out
}

// lastElem returns the final element of a module path or filesystem path.
func lastElem(p string) string {
	p = strings.TrimRight(strings.ReplaceAll(p, `\`, "/"), "/")
	return path.Base(p)
}
