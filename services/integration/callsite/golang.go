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
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// goStatementTypes end the upward walk from a call to its statement.
var goStatementTypes = map[string]bool{
	"short_var_declaration": true,
	"assignment_statement":  true,
	"expression_statement":  true,
	"return_statement":      true,
	"var_declaration":       true,
	"go_statement":          true,
	"defer_statement":       true,
}

// goFunctionTypes bound the search for an enclosing construct.
var goFunctionTypes = map[string]bool{
	"function_declaration": true,
	"method_declaration":   true,
	"func_literal":         true,
}

// scanGo classifies calls in one Go file.
//
// Bound names are the package names of imports whose path names the callee.
// A call is handled when it sits in an if initializer or condition, when it
// is returned directly, or when the error it assigns is checked by the
// following if statement. It is retried inside a call or function whose name
// matches the retry vocabulary.
func (s *Scanner) scanGo(ctx context.Context, f model.SourceFile, callee string) ([]CallSite, error) {
	tree, err := parse(ctx, golang.GetLanguage(), f.Content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	root := tree.RootNode()

	names := goBindings(root, f.Content, callee)
	if len(names) == 0 {
		return nil, nil
	}

	var sites []CallSite
	walk(root, func(n *sitter.Node) {
		if n.Type() != "call_expression" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "selector_expression" {
			return
		}
		operand := fn.ChildByFieldName("operand")
		if operand == nil || operand.Type() != "identifier" {
			return
		}
		if !callsThrough(operand.Content(f.Content), names) {
			return
		}
		sites = append(sites, CallSite{
			File:    f.Path,
			Line:    line(n),
			Target:  fn.Content(f.Content),
			Handled: goHandled(n, f.Content),
			Retried: s.goRetried(n, f.Content),
		})
	})
	return sites, nil
}

// goBindings returns the package names under which callee is imported.
func goBindings(root *sitter.Node, content []byte, callee string) []string {
	var names []string
	walk(root, func(n *sitter.Node) {
		if n.Type() != "import_spec" {
			return
		}
		pathNode := n.ChildByFieldName("path")
		if pathNode == nil {
			return
		}
		importPath := strings.Trim(pathNode.Content(content), "\"`")
		if !segmentMatches(importPath, callee, "/") {
			return
		}
		if name := n.ChildByFieldName("name"); name != nil {
			switch alias := name.Content(content); alias {
			case "_", ".":
			default:
				names = appendUnique(names, alias)
			}
			return
		}
		last := importPath[strings.LastIndex(importPath, "/")+1:]
		names = appendUnique(names,
			last,
			strings.ReplaceAll(last, "-", "_"),
			strings.ReplaceAll(last, "-", ""))
	})
	return names
}

// goHandled reports whether the error result of call is dealt with.
func goHandled(call *sitter.Node, content []byte) bool {
	for n, p := call, call.Parent(); p != nil; n, p = p, p.Parent() {
		if goFunctionTypes[p.Type()] {
			return false
		}
		if p.Type() == "if_statement" {
			if sameNode(p.ChildByFieldName("initializer"), n) || sameNode(p.ChildByFieldName("condition"), n) {
				return true
			}
		}
		if !goStatementTypes[p.Type()] {
			continue
		}
		if gp := p.Parent(); gp != nil && gp.Type() == "if_statement" && sameNode(gp.ChildByFieldName("initializer"), p) {
			return true
		}

		switch p.Type() {
		case "return_statement":
			return true
		case "short_var_declaration", "assignment_statement":
			errName := errIdentifier(p.ChildByFieldName("left"), content)
			if errName == "" {
				return false
			}
			next := p.NextNamedSibling()
			if next == nil || next.Type() != "if_statement" {
				return false
			}
			cond := next.ChildByFieldName("condition")
			return cond != nil && containsIdent(cond.Content(content), errName)
		default:
			return false
		}
	}
	return false
}

// errIdentifier returns the error-looking name on the left of an assignment.
func errIdentifier(left *sitter.Node, content []byte) string {
	if left == nil {
		return ""
	}
	parts := strings.Split(left.Content(content), ",")
	for i := len(parts) - 1; i >= 0; i-- {
		name := strings.TrimSpace(parts[i])
		if name == "_" {
			continue
		}
		if strings.Contains(strings.ToLower(name), "err") {
			return name
		}
	}
	return ""
}

func containsIdent(text, ident string) bool {
	re := regexp.MustCompile(`(?:^|[^A-Za-z0-9_])` + regexp.QuoteMeta(ident) + `(?:$|[^A-Za-z0-9_])`)
	return re.MatchString(text)
}

// goRetried reports whether a retry mechanism wraps call.
func (s *Scanner) goRetried(call *sitter.Node, content []byte) bool {
	for p := call.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "call_expression":
			if fn := p.ChildByFieldName("function"); fn != nil && s.retry.MatchString(fn.Content(content)) {
				return true
			}
		case "function_declaration", "method_declaration":
			if name := p.ChildByFieldName("name"); name != nil && s.retry.MatchString(name.Content(content)) {
				return true
			}
		}
	}
	return false
}
