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
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/AleutianAI/foresight/services/integration/deps"
	"github.com/AleutianAI/foresight/services/integration/model"
)

// rustHandlerMethods consume a Result or Option without panicking.
var rustHandlerMethods = map[string]bool{
	"map_err":           true,
	"unwrap_or":         true,
	"unwrap_or_else":    true,
	"unwrap_or_default": true,
	"or_else":           true,
	"or":                true,
	"ok":                true,
	"is_ok":             true,
	"is_err":            true,
	"context":           true,
	"with_context":      true,
}

// rustScopeTypes end the upward walk for error handling.
var rustScopeTypes = map[string]bool{
	"block":              true,
	"function_item":      true,
	"closure_expression": true,
	"source_file":        true,
}

// scanRust classifies calls in one Rust file.
//
// Bound names are the crate name itself plus every item brought into scope
// by a `use <crate>::...` declaration. A call is handled under `?`, as the
// scrutinee of `match` or `if let`, in a let-else, or when its result flows
// into map_err, unwrap_or and similar combinators.
func (s *Scanner) scanRust(ctx context.Context, f model.SourceFile, callee string) ([]CallSite, error) {
	tree, err := parse(ctx, rust.GetLanguage(), f.Content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	root := tree.RootNode()

	names := rustBindings(root, f.Content, callee)

	var sites []CallSite
	walk(root, func(n *sitter.Node) {
		if n.Type() != "call_expression" {
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
			Handled: rustHandled(n, f.Content),
			Retried: s.rustRetried(n, f.Content),
		})
	})
	return sites, nil
}

// rustBindings returns the crate variants and the names imported from them.
func rustBindings(root *sitter.Node, content []byte, callee string) []string {
	variants := deps.Variants(callee)
	names := appendUnique(nil, variants...)

	walk(root, func(n *sitter.Node) {
		if n.Type() != "use_declaration" {
			return
		}
		arg := n.ChildByFieldName("argument")
		if arg == nil {
			return
		}
		text := strings.Join(strings.Fields(arg.Content(content)), " ")
		for _, v := range variants {
			switch {
			case text == v:
			case strings.HasPrefix(text, v+" as "):
				names = appendUnique(names, strings.TrimSpace(strings.TrimPrefix(text, v+" as ")))
			case strings.HasPrefix(text, v+"::"):
				names = appendUnique(names, useTreeNames(strings.TrimPrefix(text, v+"::"))...)
			}
		}
	})
	return names
}

// useTreeNames returns the local names a use tree binds.
//
// "client::{Client, fetch as get}" yields ["Client", "get"].
func useTreeNames(tree string) []string {
	tree = strings.TrimSpace(tree)
	if i := strings.Index(tree, "{"); i >= 0 && strings.HasSuffix(tree, "}") {
		var out []string
		for _, item := range splitTopLevel(tree[i+1 : len(tree)-1]) {
			out = append(out, useTreeNames(item)...)
		}
		if prefix := strings.TrimSuffix(tree[:i], "::"); prefix != "" {
			for _, item := range splitTopLevel(tree[i+1 : len(tree)-1]) {
				if strings.TrimSpace(item) == "self" {
					out = append(out, lastPathSegment(prefix))
				}
			}
		}
		return out
	}
	if i := strings.Index(tree, " as "); i >= 0 {
		return []string{strings.TrimSpace(tree[i+4:])}
	}
	last := lastPathSegment(tree)
	if last == "*" || last == "self" || last == "" {
		return nil
	}
	return []string{last}
}

func lastPathSegment(p string) string {
	if i := strings.LastIndex(p, "::"); i >= 0 {
		return strings.TrimSpace(p[i+2:])
	}
	return strings.TrimSpace(p)
}

// splitTopLevel splits on commas outside nested braces.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// rustHandled reports whether the Result of call is consumed by an
// error-handling construct.
func rustHandled(call *sitter.Node, content []byte) bool {
	for n, p := call, call.Parent(); p != nil; n, p = p, p.Parent() {
		if rustScopeTypes[p.Type()] {
			return false
		}
		switch p.Type() {
		case "try_expression":
			return true
		case "match_expression", "let_condition", "if_let_expression", "while_let_expression":
			if sameNode(p.ChildByFieldName("value"), n) {
				return true
			}
		case "let_declaration":
			if p.ChildByFieldName("alternative") != nil {
				return true
			}
		case "field_expression":
			if !sameNode(p.ChildByFieldName("value"), n) {
				continue
			}
			if field := p.ChildByFieldName("field"); field != nil && rustHandlerMethods[field.Content(content)] {
				return true
			}
		}
	}
	return false
}

// rustRetried reports whether a retry mechanism wraps call.
func (s *Scanner) rustRetried(call *sitter.Node, content []byte) bool {
	for p := call.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "call_expression":
			if fn := p.ChildByFieldName("function"); fn != nil && s.retry.MatchString(fn.Content(content)) {
				return true
			}
		case "function_item":
			if name := p.ChildByFieldName("name"); name != nil && s.retry.MatchString(name.Content(content)) {
				return true
			}
			for prev := p.PrevNamedSibling(); prev != nil && prev.Type() == "attribute_item"; prev = prev.PrevNamedSibling() {
				if s.retry.MatchString(prev.Content(content)) {
					return true
				}
			}
		}
	}
	return false
}
