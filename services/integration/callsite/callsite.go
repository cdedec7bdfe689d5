// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package callsite locates the places where one component calls another and
// classifies how each call is protected.
//
// # Description
//
// Python, Go and Rust files are parsed with tree-sitter. The names a file
// binds to the callee are taken from its import declarations, then every
// call through one of those names becomes a CallSite. A call is Handled
// when an error-handling construct of its language surrounds it and Retried
// when a retry, backoff or circuit-breaker mechanism wraps it.
//
// Other source files fall back to a line-based heuristic. Files that fail to
// parse are scanned with the fallback too.
//
// # Thread Safety
//
// A Scanner is safe for concurrent use. Each file gets its own tree-sitter
// parser instance.
package callsite

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/foresight/services/integration/deps"
	"github.com/AleutianAI/foresight/services/integration/model"
)

// CallSite is one call from a caller's source into a callee.
type CallSite struct {
	// File is the caller-relative path of the file containing the call.
	File string `json:"file"`

	// Line is the 1-indexed line of the call.
	Line int `json:"line"`

	// Target is the called expression, e.g. "api.call".
	Target string `json:"target"`

	// Handled is true when an error-handling construct surrounds the call.
	Handled bool `json:"handled"`

	// Retried is true when a retry mechanism wraps the call.
	Retried bool `json:"retried"`
}

// Protected reports whether the call has either protection.
func (c CallSite) Protected() bool {
	return c.Handled || c.Retried
}

// DefaultRetryPattern matches retry, backoff and circuit-breaker vocabulary.
var DefaultRetryPattern = regexp.MustCompile(`(?i)retry|retries|backoff|tenacity|circuit|breaker`)

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger for parse diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetryPattern replaces the retry vocabulary.
func WithRetryPattern(re *regexp.Regexp) Option {
	return func(s *Scanner) {
		if re != nil {
			s.retry = re
		}
	}
}

// Scanner finds and classifies call sites.
type Scanner struct {
	logger *slog.Logger
	retry  *regexp.Regexp
}

// NewScanner creates a Scanner.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		logger: slog.Default(),
		retry:  DefaultRetryPattern,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "callsite"))
	return s
}

// textExtensions are scanned with the line-based fallback.
var textExtensions = map[string]bool{
	".js": true, ".mjs": true, ".cjs": true, ".jsx": true,
	".ts": true, ".tsx": true,
	".java": true, ".kt": true, ".scala": true,
	".rb": true, ".cs": true, ".php": true, ".swift": true,
}

// Scan returns every call from files into callee.
//
// # Description
//
// Only files that reference callee are examined. The language is chosen by
// file extension; manifests and unknown extensions are ignored.
//
// # Inputs
//
//   - ctx: Cancels scanning between files and during parsing.
//   - files: The caller's source files.
//   - callee: The callee component ID.
//
// # Outputs
//
//   - []CallSite: Sorted by file, line and target.
//   - error: Non-nil only if ctx was cancelled.
func (s *Scanner) Scan(ctx context.Context, files []model.SourceFile, callee string) ([]CallSite, error) {
	var sites []CallSite
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := string(f.Content)
		if !deps.References(text, callee) {
			continue
		}

		var found []CallSite
		var err error
		ext := strings.ToLower(path.Ext(f.Path))
		switch ext {
		case ".py":
			found, err = s.scanPython(ctx, f, callee)
		case ".go":
			found, err = s.scanGo(ctx, f, callee)
		case ".rs":
			found, err = s.scanRust(ctx, f, callee)
		default:
			if !textExtensions[ext] {
				continue
			}
			found = s.scanText(f, callee)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Debug("parse failed, using text fallback",
				slog.String("file", f.Path),
				slog.String("error", err.Error()))
			found = s.scanText(f, callee)
		}
		sites = append(sites, found...)
	}

	sort.SliceStable(sites, func(i, j int) bool {
		if sites[i].File != sites[j].File {
			return sites[i].File < sites[j].File
		}
		if sites[i].Line != sites[j].Line {
			return sites[i].Line < sites[j].Line
		}
		return sites[i].Target < sites[j].Target
	})
	return sites, nil
}

// parse runs tree-sitter over content with a fresh parser.
func parse(ctx context.Context, lang *sitter.Language, content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	return parser.ParseCtx(ctx, nil, content)
}

// walk visits every node under root in document order.
func walk(root *sitter.Node, visit func(n *sitter.Node)) {
	if root == nil {
		return
	}
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(n)
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
}

// sameNode reports whether a and b span the same bytes with the same type.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// line returns the 1-indexed line of n.
func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// callsThrough reports whether the called expression goes through one of names.
func callsThrough(expr string, names []string) bool {
	for _, name := range names {
		if expr == name ||
			strings.HasPrefix(expr, name+".") ||
			strings.HasPrefix(expr, name+"::") {
			return true
		}
	}
	return false
}

// segmentMatches reports whether any separator-delimited segment of s is a
// variant of callee.
func segmentMatches(s, callee string, seps string) bool {
	variants := deps.Variants(callee)
	for _, seg := range strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(seps, r) }) {
		for _, v := range variants {
			if seg == v {
				return true
			}
		}
	}
	return false
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		dup := false
		for _, have := range list {
			if have == v {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, v)
		}
	}
	return list
}
