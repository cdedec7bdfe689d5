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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/foresight/services/integration/model"
)

func file(p, content string) model.SourceFile {
	return model.SourceFile{Path: p, Content: []byte(content)}
}

func callees(edges []model.DependencyEdge) []string {
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Callee)
	}
	return out
}

func TestVariants(t *testing.T) {
	assert.Equal(t, []string{"service-b", "service_b"}, Variants("service-b"))
	assert.Equal(t, []string{"service_b", "service-b"}, Variants("service_b"))
	assert.Equal(t, []string{"auth"}, Variants("auth"))
}

func TestExtract_PythonImports(t *testing.T) {
	known := []string{"service-a", "service-b", "service-c", "service-d"}
	ex := NewExtractor(known, nil)

	files := []model.SourceFile{
		file("main.py", "from components.service_b import b\nimport components.service_d\n"),
	}
	edges := ex.Extract(context.Background(), "service-a", files)
	assert.Equal(t, []string{"service-b", "service-d"}, callees(edges))
	assert.Equal(t, model.EvidenceSource, edges[0].Evidence)
	assert.Equal(t, "main.py", edges[0].File)
}

func TestExtract_HyphenatedImport(t *testing.T) {
	ex := NewExtractor([]string{"service-a", "service-b"}, nil)

	edges := ex.Extract(context.Background(), "service-a", []model.SourceFile{
		file("main.py", "import service-b\n"),
	})
	assert.Equal(t, []string{"service-b"}, callees(edges))

	edges = ex.Extract(context.Background(), "service-a", []model.SourceFile{
		file("main.py", "from components.service-b import func\n"),
	})
	assert.Equal(t, []string{"service-b"}, callees(edges))
}

func TestExtract_IgnoresUnqualifiedMentions(t *testing.T) {
	ex := NewExtractor([]string{"auth", "billing"}, nil)

	edges := ex.Extract(context.Background(), "billing", []model.SourceFile{
		file("main.py", "# talk to auth later\nauthority = 1\nprint('auth')\n"),
	})
	assert.Empty(t, edges)
}

func TestExtract_NoSelfEdge(t *testing.T) {
	ex := NewExtractor([]string{"service-a", "service-b"}, nil)

	edges := ex.Extract(context.Background(), "service-a", []model.SourceFile{
		file("main.py", "from components.service_a import x\n"),
	})
	assert.Empty(t, edges)
}

func TestExtract_RustPaths(t *testing.T) {
	ex := NewExtractor([]string{"parser", "lexer", "core_types"}, nil)

	edges := ex.Extract(context.Background(), "parser", []model.SourceFile{
		file("src/lib.rs", "use lexer::Token;\nfn f() -> core_types::Value { todo!() }\n"),
	})
	assert.Equal(t, []string{"core_types", "lexer"}, callees(edges))
}

func TestExtract_GoImportPath(t *testing.T) {
	ex := NewExtractor([]string{"gateway", "user-service"}, nil)

	edges := ex.Extract(context.Background(), "gateway", []model.SourceFile{
		file("main.go", "package main\n\nimport (\n\t\"example.com/shop/user-service\"\n)\n"),
	})
	assert.Equal(t, []string{"user-service"}, callees(edges))
}

func TestExtract_GoModManifest(t *testing.T) {
	ex := NewExtractor([]string{"gateway", "user-service", "orders"}, nil)

	gomod := `module example.com/shop/gateway

go 1.22

require example.com/shop/user-service v0.0.0

replace example.com/shop/ordering => ../orders
`
	edges := ex.Extract(context.Background(), "gateway", []model.SourceFile{file("go.mod", gomod)})
	require.Len(t, edges, 2)
	assert.Equal(t, []string{"orders", "user-service"}, callees(edges))
	for _, e := range edges {
		assert.Equal(t, model.EvidenceManifest, e.Evidence)
	}
}

func TestExtract_CargoManifest(t *testing.T) {
	ex := NewExtractor([]string{"parser", "lexer", "core-types", "harness"}, nil)

	cargo := `[package]
name = "parser"

[dependencies]
core_types = { path = "../core_types" }
serde = "1"

[dev-dependencies]
tokens = { package = "lexer", version = "0.1" }
`
	edges := ex.Extract(context.Background(), "parser", []model.SourceFile{file("Cargo.toml", cargo)})
	assert.Equal(t, []string{"core-types", "lexer"}, callees(edges))
}

func TestExtract_MalformedManifestSkipped(t *testing.T) {
	ex := NewExtractor([]string{"parser", "lexer"}, nil)

	edges := ex.Extract(context.Background(), "parser", []model.SourceFile{
		file("Cargo.toml", "[dependencies\nlexer = "),
		file("src/lib.rs", "use lexer::Token;\n"),
	})
	require.Len(t, edges, 1)
	assert.Equal(t, model.EvidenceSource, edges[0].Evidence)
}

func TestExtract_Deterministic(t *testing.T) {
	ex := NewExtractor([]string{"c", "a", "b", "d"}, nil)
	files := []model.SourceFile{
		file("x.py", "import c\nimport b\n"),
		file("y.py", "from components.a import z\n"),
	}
	first := ex.Extract(context.Background(), "d", files)
	second := ex.Extract(context.Background(), "d", files)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "b", "c"}, callees(first))
}

func TestReferences(t *testing.T) {
	assert.True(t, References("from components.service_b import api", "service-b"))
	assert.False(t, References("def standalone_function():\n    return 1", "service-b"))
}

func TestReferences_PatternsCompiledOnce(t *testing.T) {
	const id = "ledger-svc"
	compiledPatterns.Remove(id)

	assert.True(t, References("import ledger_svc", id))
	first, ok := compiledPatterns.Get(id)
	require.True(t, ok)

	for i := 0; i < 50; i++ {
		assert.True(t, References("x = components/ledger-svc/", id))
		assert.False(t, References("ledger_svc_total = 3", id))
	}
	again, ok := compiledPatterns.Get(id)
	require.True(t, ok)
	require.Len(t, again, len(first))
	assert.Same(t, first[0], again[0])

	e := NewExtractor([]string{id, "caller"}, nil)
	assert.Same(t, first[0], e.targets[1].patterns[0])
}
