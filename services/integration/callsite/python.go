// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package callsite

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/AleutianAI/foresight/services/integration/deps"
	"github.com/AleutianAI/foresight/services/integration/model"
)

// scanPython classifies calls in one Python file.
//
// Bound names come from `import components.x [as y]` and
// `from components.x import a [as b]`. A call is handled inside a try body
// and retried under a decorator, `with` item or enclosing call that matches
// the retry vocabulary.
func (s *Scanner) scanPython(ctx context.Context, f model.SourceFile, callee string) ([]CallSite, error) {
	tree, err := parse(ctx, python.GetLanguage(), f.Content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	root := tree.RootNode()

	names := pythonBindings(root, f.Content, callee)
	if len(names) == 0 {
		return nil, nil
	}

	var sites []CallSite
	walk(root, func(n *sitter.Node) {
		if n.Type() != "call" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return
		}
		target := fn.Content(f.Content)
		// calls on a returned value belong to the inner call
		if strings.Contains(target, "(") || !callsThrough(target, names) {
			return
		}
		sites = append(sites, CallSite{
			File:    f.Path,
			Line:    line(n),
			Target:  target,
			Handled: pythonHandled(n),
			Retried: s.pythonRetried(n, f.Content),
		})
	})
	return sites, nil
}

// pythonBindings returns the local names that refer to callee.
func pythonBindings(root *sitter.Node, content []byte, callee string) []string {
	var names []string
	variants := deps.Variants(callee)

	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				item := n.NamedChild(i)
				name, alias := importItem(item, content)
				if segmentMatches(name, callee, ".") {
					if alias != "" {
						names = appendUnique(names, alias)
					} else {
						names = appendUnique(names, name)
					}
				}
			}

		case "import_from_statement":
			module := n.ChildByFieldName("module_name")
			if module == nil {
				return
			}
			fromCallee := segmentMatches(module.Content(content), callee, ".")
			for i := 0; i < int(n.NamedChildCount()); i++ {
				item := n.NamedChild(i)
				if sameNode(item, module) {
					continue
				}
				name, alias := importItem(item, content)
				if name == "" {
					continue
				}
				local := name
				if alias != "" {
					local = alias
				}
				// from components import service_b
				importsCallee := false
				for _, v := range variants {
					if name == v {
						importsCallee = true
					}
				}
				if fromCallee || importsCallee {
					names = appendUnique(names, local)
				}
			}
		}
	})
	return names
}

// importItem splits a dotted_name or aliased_import into name and alias.
func importItem(n *sitter.Node, content []byte) (string, string) {
	switch n.Type() {
	case "dotted_name":
		return n.Content(content), ""
	case "aliased_import":
		name := n.ChildByFieldName("name")
		alias := n.ChildByFieldName("alias")
		if name == nil {
			return "", ""
		}
		if alias == nil {
			return name.Content(content), ""
		}
		return name.Content(content), alias.Content(content)
	}
	return "", ""
}

// pythonHandled reports whether call sits in the body of a try statement.
func pythonHandled(call *sitter.Node) bool {
	for n, p := call, call.Parent(); p != nil; n, p = p, p.Parent() {
		switch p.Type() {
		case "try_statement":
			if sameNode(p.ChildByFieldName("body"), n) {
				return true
			}
		case "function_definition", "lambda", "class_definition":
			return false
		}
	}
	return false
}

// pythonRetried reports whether a retry mechanism wraps call.
func (s *Scanner) pythonRetried(call *sitter.Node, content []byte) bool {
	for p := call.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "decorated_definition":
			for i := 0; i < int(p.NamedChildCount()); i++ {
				child := p.NamedChild(i)
				if child.Type() == "decorator" && s.retry.MatchString(child.Content(content)) {
					return true
				}
			}
		case "call":
			if fn := p.ChildByFieldName("function"); fn != nil && s.retry.MatchString(fn.Content(content)) {
				return true
			}
		case "with_statement":
			for i := 0; i < int(p.NamedChildCount()); i++ {
				child := p.NamedChild(i)
				if child.Type() == "with_clause" && s.retry.MatchString(child.Content(content)) {
					return true
				}
			}
		}
	}
	return false
}
