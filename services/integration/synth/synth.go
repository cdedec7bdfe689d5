// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package synth turns a prediction into an integration test suite with one
// stub per predicted failure.
package synth

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/AleutianAI/foresight/services/integration/model"
	"github.com/AleutianAI/foresight/services/integration/rules"
)

// Language selects the generated suite's target.
type Language string

const (
	LanguageGo     Language = "go"
	LanguagePython Language = "python"
)

// ErrUnknownLanguage is returned for an unsupported target.
var ErrUnknownLanguage = errors.New("unknown test language")

// ParseLanguage accepts "go", "python" and the alias "pytest".
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "go", "golang":
		return LanguageGo, nil
	case "python", "pytest", "py":
		return LanguagePython, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
}

// FileName returns the conventional file name for a generated suite.
func (l Language) FileName() string {
	if l == LanguagePython {
		return "test_integration_predictions.py"
	}
	return "integration_predictions_test.go"
}

// TestCase is one generated test.
type TestCase struct {
	Name    string
	Failure model.PredictedFailure

	// Assertion is the message checked by the test: the catalog's test
	// generation guidance for the failure's category.
	Assertion string
}

// Suite is a rendered test suite.
type Suite struct {
	Language Language
	Cases    []TestCase
	Source   []byte
}

// Option configures Generate.
type Option func(*generator)

// WithPackage sets the Go package clause. Defaults to "integration_test".
func WithPackage(name string) Option {
	return func(g *generator) {
		if name != "" {
			g.pkg = name
		}
	}
}

// WithCatalog supplies guidance for failures that carry none.
func WithCatalog(c *rules.Catalog) Option {
	return func(g *generator) {
		if c != nil {
			g.catalog = c
		}
	}
}

type generator struct {
	pkg     string
	catalog *rules.Catalog
}

// Generate renders a test suite for a prediction.
//
// # Description
//
// Each failure yields one test named from its category and both component
// IDs; repeated names get numeric suffixes. A prediction without failures
// yields a single placeholder test asserting that none were predicted. Go
// output is gofmt-formatted.
//
// # Inputs
//
//   - pred: The prediction. Must not be nil.
//   - lang: Target language.
//
// # Outputs
//
//   - *Suite: Cases in failure order and the rendered source.
//   - error: On unknown language or a rendering failure.
func Generate(pred *model.IntegrationPrediction, lang Language, opts ...Option) (*Suite, error) {
	if pred == nil {
		return nil, errors.New("nil prediction")
	}
	g := &generator{pkg: "integration_test", catalog: rules.NewDefault()}
	for _, opt := range opts {
		opt(g)
	}

	var tmpl *template.Template
	var namer func(model.PredictedFailure) string
	var placeholder string
	switch lang {
	case LanguageGo:
		tmpl, namer, placeholder = goTemplate, goTestName, "TestNoFailuresPredicted"
	case LanguagePython:
		tmpl, namer, placeholder = pythonTemplate, pythonTestName, "test_no_failures_predicted"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}

	cases := make([]TestCase, 0, len(pred.PredictedFailures))
	used := make(map[string]bool)
	for _, f := range pred.PredictedFailures {
		name := uniqueName(namer(f), used)
		cases = append(cases, TestCase{Name: name, Failure: f, Assertion: g.assertion(f)})
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct {
		Package     string
		Cases       []TestCase
		Placeholder string
	}{Package: g.pkg, Cases: cases, Placeholder: placeholder})
	if err != nil {
		return nil, fmt.Errorf("render %s suite: %w", lang, err)
	}

	src := buf.Bytes()
	if lang == LanguageGo {
		formatted, err := format.Source(src)
		if err != nil {
			return nil, fmt.Errorf("format go suite: %w", err)
		}
		src = formatted
	}
	return &Suite{Language: lang, Cases: cases, Source: src}, nil
}

func (g *generator) assertion(f model.PredictedFailure) string {
	guidance := f.TestGeneration
	if guidance == "" {
		guidance = g.catalog.TestGeneration(f.FailureType)
	}
	if guidance == "" {
		guidance = f.Description
	}
	return guidance
}

var (
	goTemplate = template.Must(template.New("go").Funcs(template.FuncMap{
		"quote":   quote,
		"comment": comment,
	}).Parse(goSuiteTemplate))

	pythonTemplate = template.Must(template.New("python").Funcs(template.FuncMap{
		"quote":     quote,
		"docstring": docstring,
	}).Parse(pythonSuiteTemplate))
)

// goTestName builds Test<Category>_<A>_<B>.
func goTestName(f model.PredictedFailure) string {
	return "Test" + pascal(string(f.FailureType)) + "_" + identifier(f.ComponentA, true) + "_" + identifier(f.ComponentB, true)
}

// pythonTestName builds test_<category>_<a>_<b>.
func pythonTestName(f model.PredictedFailure) string {
	return "test_" + identifier(string(f.FailureType), false) + "_" + identifier(f.ComponentA, false) + "_" + identifier(f.ComponentB, false)
}

// pascal turns snake_case into PascalCase.
func pascal(s string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == '.' }) {
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// identifier maps a component ID onto identifier characters. Go names keep
// the PascalCase of each word; Python names are lower snake case.
func identifier(s string, upper bool) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	if len(words) == 0 {
		words = []string{"none"}
	}
	if upper {
		return pascal(strings.Join(words, "_"))
	}
	return strings.ToLower(strings.Join(words, "_"))
}

func quote(v any) string {
	return strconv.Quote(fmt.Sprint(v))
}

// comment flattens text onto one comment line.
func comment(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// uniqueName returns base, or base_N with the smallest free N >= 2, and
// marks the result used.
func uniqueName(base string, used map[string]bool) string {
	name := base
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	used[name] = true
	return name
}

// docstring makes s safe inside a triple-quoted Python string. Every quote is
// escaped so no run of quotes can close the string early.
func docstring(s string) string {
	s = comment(s)
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
