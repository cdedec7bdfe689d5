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
	"regexp"
	"strings"

	"github.com/AleutianAI/foresight/services/integration/deps"
	"github.com/AleutianAI/foresight/services/integration/model"
)

var (
	importLinePattern = regexp.MustCompile(`^\s*(?:import|from|using|require|extern|use|#include)\b|\brequire\s*\(`)

	jsDefaultImport   = regexp.MustCompile(`import\s+(?:\*\s+as\s+)?([A-Za-z_$][\w$]*)\s*(?:,|from)`)
	jsNamedImport     = regexp.MustCompile(`import\s*(?:[A-Za-z_$][\w$]*\s*,\s*)?\{([^}]*)\}`)
	jsRequire         = regexp.MustCompile(`(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*require\s*\(`)
	jsRequireDestruct = regexp.MustCompile(`(?:const|let|var)\s*\{([^}]*)\}\s*=\s*require\s*\(`)
	qualifiedImport   = regexp.MustCompile(`^\s*(?:import|using)\s+(?:static\s+)?[\w.]+\.([A-Za-z_]\w*)\s*;?\s*$`)

	tryLine     = regexp.MustCompile(`^\s*(?:\}\s*)?(?:try|begin)\b`)
	handlerLine = regexp.MustCompile(`^\s*(?:\}\s*)?(?:catch|except|rescue)\b`)
	inlineCatch = regexp.MustCompile(`\.catch\s*\(|\brescue\b`)
)

// scanText classifies calls with line heuristics.
//
// Bound names are the callee's ID variants plus names introduced on import
// or require lines that reference the callee. A call is handled when a
// less-indented `try` precedes it and the first line back at that
// indentation is a catch/except/rescue, or when `.catch(` follows it on the
// same line. Retried means the retry vocabulary appears anywhere in the file.
func (s *Scanner) scanText(f model.SourceFile, callee string) []CallSite {
	lines := strings.Split(string(f.Content), "\n")
	names := textBindings(lines, callee)
	retried := s.retry.Match(f.Content)

	patterns := make([]*regexp.Regexp, len(names))
	for i, name := range names {
		patterns[i] = regexp.MustCompile(`(?:^|[^A-Za-z0-9_$.])(` + regexp.QuoteMeta(name) + `(?:(?:\.|::)[A-Za-z_$][\w$]*)*)\s*\(`)
	}

	var sites []CallSite
	for i, ln := range lines {
		if importLinePattern.MatchString(ln) {
			continue
		}
		for _, re := range patterns {
			m := re.FindStringSubmatch(ln)
			if m == nil {
				continue
			}
			sites = append(sites, CallSite{
				File:    f.Path,
				Line:    i + 1,
				Target:  m[1],
				Handled: inlineCatch.MatchString(ln) || insideTry(lines, i),
				Retried: retried,
			})
			break
		}
	}
	return sites
}

// textBindings collects the names a file binds to callee.
func textBindings(lines []string, callee string) []string {
	names := appendUnique(nil, deps.Variants(callee)...)
	for _, ln := range lines {
		if !deps.References(ln, callee) {
			continue
		}
		if m := jsDefaultImport.FindStringSubmatch(ln); m != nil {
			names = appendUnique(names, m[1])
		}
		for _, re := range []*regexp.Regexp{jsNamedImport, jsRequireDestruct} {
			if m := re.FindStringSubmatch(ln); m != nil {
				for _, item := range strings.Split(m[1], ",") {
					names = appendUnique(names, boundName(item))
				}
			}
		}
		if m := jsRequire.FindStringSubmatch(ln); m != nil {
			names = appendUnique(names, m[1])
		}
		if m := qualifiedImport.FindStringSubmatch(ln); m != nil {
			names = appendUnique(names, m[1])
		}
	}
	return names
}

// boundName returns the local name of "a", "a as b" or "a: b".
func boundName(item string) string {
	item = strings.TrimSpace(item)
	if i := strings.Index(item, " as "); i >= 0 {
		return strings.TrimSpace(item[i+4:])
	}
	if i := strings.Index(item, ":"); i >= 0 {
		return strings.TrimSpace(item[i+1:])
	}
	return item
}

// insideTry reports whether line idx sits in a try block that has a handler.
func insideTry(lines []string, idx int) bool {
	current := indentOf(lines[idx])
	for j := idx - 1; j >= 0; j-- {
		if strings.TrimSpace(lines[j]) == "" {
			continue
		}
		ind := indentOf(lines[j])
		if ind >= current {
			continue
		}
		current = ind
		if !tryLine.MatchString(lines[j]) {
			continue
		}
		if handlerFollows(lines, idx, ind) {
			return true
		}
	}
	return false
}

// handlerFollows reports whether the first line after idx at or below indent
// opens a handler.
func handlerFollows(lines []string, idx, indent int) bool {
	for k := idx + 1; k < len(lines); k++ {
		if strings.TrimSpace(lines[k]) == "" {
			continue
		}
		if indentOf(lines[k]) <= indent {
			return handlerLine.MatchString(lines[k])
		}
	}
	return false
}

func indentOf(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
