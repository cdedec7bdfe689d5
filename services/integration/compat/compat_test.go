// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/foresight/services/integration/graph"
	"github.com/AleutianAI/foresight/services/integration/model"
	"github.com/AleutianAI/foresight/services/integration/rules"
)

func described(desc string) *model.Contract {
	return &model.Contract{Description: desc, TimeoutSeconds: model.DefaultTimeoutSeconds}
}

func withField(name string, spec model.FieldSpec) *model.Contract {
	return &model.Contract{
		TimeoutSeconds: model.DefaultTimeoutSeconds,
		Schemas:        map[string]map[string]model.FieldSpec{"User": {name: spec}},
	}
}

func timed(seconds float64) *model.Contract {
	return &model.Contract{TimeoutSeconds: seconds, TimeoutDeclared: true}
}

// =============================================================================
// Data type
// =============================================================================

func TestDetectDateFamily(t *testing.T) {
	cases := map[string]DateFamily{
		"Uses ISO8601 format for dates":          DateISO8601,
		"timestamps are RFC 3339 strings":        DateISO8601,
		"Uses Unix timestamp for dates":          DateUnix,
		"seconds since the epoch":                DateUnix,
		"unix timestamp in milliseconds":         DateUnixMilli,
		"dates follow RFC1123 as in HTTP":        DateRFC1123,
		"No date information in this paragraph.": "",
	}
	for desc, want := range cases {
		assert.Equal(t, want, DetectDateFamily(desc), desc)
	}
}

func TestDataType_DateMismatch(t *testing.T) {
	failures := NewDataType(nil).Analyze("service-a", "service-b",
		described("Uses ISO8601 format for dates"),
		described("Uses Unix timestamp for dates"))

	require.Len(t, failures, 1)
	f := failures[0]
	assert.Equal(t, model.FailureDataFormatMismatch, f.FailureType)
	assert.Equal(t, model.SeverityCritical, f.Severity)
	assert.Equal(t, "service-a", f.ComponentA)
	assert.Equal(t, "service-b", f.ComponentB)
	assert.NotEmpty(t, f.FixStrategy)
	assert.NotEmpty(t, f.TestGeneration)
}

func TestDataType_SameVocabulary(t *testing.T) {
	failures := NewDataType(nil).Analyze("a", "b", described("Uses ISO8601 format"), described("Uses ISO8601 format"))
	assert.Empty(t, failures)
}

func TestDataType_MissingContract(t *testing.T) {
	assert.Empty(t, NewDataType(nil).Analyze("a", "b", nil, described("Uses ISO8601")))
	assert.Empty(t, NewDataType(nil).Analyze("a", "b", described("Uses ISO8601"), nil))
}

func TestDataType_IDFormatMismatch(t *testing.T) {
	failures := NewDataType(nil).Analyze("service-a", "service-b",
		withField("id", model.FieldSpec{Type: "string", Format: "uuid"}),
		withField("id", model.FieldSpec{Type: "integer"}))

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Description, "id (string/uuid vs integer)")
}

func TestDataType_FormatNormalization(t *testing.T) {
	failures := NewDataType(nil).Analyze("a", "b",
		withField("created", model.FieldSpec{Type: "string", Format: "date-time"}),
		withField("created", model.FieldSpec{Type: "String", Format: "DATE_TIME"}))
	assert.Empty(t, failures)
}

func TestDataType_ExampleViolatesPeerFormat(t *testing.T) {
	failures := NewDataType(nil).Analyze("a", "b",
		withField("id", model.FieldSpec{Type: "string", Format: "uuid", Example: "3fa85f64-5717-4562-b3fc-2c963f66afa6"}),
		withField("id", model.FieldSpec{Type: "string", Format: "uuid", Example: "user-42"}))
	assert.Len(t, failures, 1)
}

func TestDataType_BothChecksFire(t *testing.T) {
	ca := withField("id", model.FieldSpec{Type: "string", Format: "uuid"})
	ca.Description = "ISO8601 dates"
	cb := withField("id", model.FieldSpec{Type: "integer"})
	cb.Description = "Unix timestamp dates"

	failures := NewDataType(nil).Analyze("a", "b", ca, cb)
	assert.Len(t, failures, 2)
}

func schemas(entities map[string]map[string]model.FieldSpec) *model.Contract {
	return &model.Contract{TimeoutSeconds: model.DefaultTimeoutSeconds, Schemas: entities}
}

func TestDataType_SameEntityComparedBeforeOthers(t *testing.T) {
	ca := schemas(map[string]map[string]model.FieldSpec{
		"Order": {"id": {Type: "integer"}},
		"User":  {"id": {Type: "string", Format: "uuid"}},
	})
	cb := schemas(map[string]map[string]model.FieldSpec{
		"Zed":  {"id": {Type: "integer"}},
		"User": {"id": {Type: "integer"}},
	})

	failures := NewDataType(nil).Analyze("a", "b", ca, cb)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Description, "User.id (string/uuid vs integer)")
	assert.NotContains(t, failures[0].Description, "Order")
}

func TestDataType_SameEntityAgreementIgnoresOtherEntities(t *testing.T) {
	ca := schemas(map[string]map[string]model.FieldSpec{
		"Order": {"id": {Type: "integer"}},
		"User":  {"id": {Type: "string"}},
	})
	cb := schemas(map[string]map[string]model.FieldSpec{
		"User": {"id": {Type: "string"}},
	})
	assert.Empty(t, NewDataType(nil).Analyze("a", "b", ca, cb))
}

func TestDataType_CrossEntityFallback(t *testing.T) {
	ca := schemas(map[string]map[string]model.FieldSpec{
		"Customer": {"id": {Type: "integer"}},
		"Order":    {"id": {Type: "integer"}},
	})
	cb := schemas(map[string]map[string]model.FieldSpec{
		"Account": {"id": {Type: "integer"}},
		"Profile": {"id": {Type: "string", Format: "uuid"}},
	})

	failures := NewDataType(nil).Analyze("a", "b", ca, cb)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Description, "Customer.id vs Profile.id (integer vs string/uuid)")

	cb = schemas(map[string]map[string]model.FieldSpec{"Account": {"id": {Type: "integer"}}})
	assert.Empty(t, NewDataType(nil).Analyze("a", "b", ca, cb))
}

func TestDataType_UnsharedFieldsIgnored(t *testing.T) {
	failures := NewDataType(nil).Analyze("a", "b",
		withField("id", model.FieldSpec{Type: "string"}),
		withField("user_id", model.FieldSpec{Type: "integer"}))
	assert.Empty(t, failures)
}

// =============================================================================
// Error propagation
// =============================================================================

func TestErrorPropagation_Unprotected(t *testing.T) {
	files := []model.SourceFile{{Path: "main.py", Content: []byte("from components.service_b import api\nresult = api.call()")}}

	failures, err := NewErrorPropagation(nil, nil).Analyze(context.Background(), "service_a", "service_b", files)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, model.FailureMissingErrorHandling, failures[0].FailureType)
	assert.Equal(t, model.SeverityWarning, failures[0].Severity)
	assert.Equal(t, "service_a", failures[0].ComponentA)
	assert.Equal(t, "service_b", failures[0].ComponentB)
	assert.Contains(t, failures[0].Description, "main.py:2")
}

func TestErrorPropagation_Protected(t *testing.T) {
	code := "from components.service_b import api\nfrom tenacity import retry\n\n@retry\ndef call():\n    try:\n        return api.call()\n    except:\n        pass"
	files := []model.SourceFile{{Path: "main.py", Content: []byte(code)}}

	failures, err := NewErrorPropagation(nil, nil).Analyze(context.Background(), "service_a", "service_b", files)
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestErrorPropagation_NoCallSite(t *testing.T) {
	files := []model.SourceFile{{Path: "main.py", Content: []byte("\ndef standalone_function():\n    return \"no dependencies\"\n")}}

	failures, err := NewErrorPropagation(nil, nil).Analyze(context.Background(), "service_a", "service_b", files)
	require.NoError(t, err)
	assert.Empty(t, failures)
}

// =============================================================================
// Timeout
// =============================================================================

func TestTimeout_Margins(t *testing.T) {
	an := NewTimeout(nil, DefaultMarginSeconds, DefaultMarginRatio)

	assert.True(t, an.Safe(30, 10))
	assert.False(t, an.Safe(10, 9))
	assert.Equal(t, 15.0, an.Required(10))
	assert.Equal(t, 30.0, an.Required(20))
}

func TestTimeout_Unsafe(t *testing.T) {
	failures := NewTimeout(nil, DefaultMarginSeconds, DefaultMarginRatio).Analyze("a", "b", timed(10), timed(9))

	require.Len(t, failures, 1)
	assert.Equal(t, model.FailureTimeoutCascade, failures[0].FailureType)
	assert.Equal(t, model.SeverityWarning, failures[0].Severity)
	assert.Contains(t, failures[0].Description, "needs at least 14s")
}

func TestTimeout_SafeAndUndeclared(t *testing.T) {
	an := NewTimeout(nil, DefaultMarginSeconds, DefaultMarginRatio)

	assert.Empty(t, an.Analyze("a", "b", timed(30), timed(10)))
	assert.Empty(t, an.Analyze("a", "b", timed(10), &model.Contract{TimeoutSeconds: 30}))
	assert.Empty(t, an.Analyze("a", "b", nil, timed(9)))
}

func TestTimeout_CustomMargins(t *testing.T) {
	an := NewTimeout(nil, 0, 1)
	assert.Empty(t, an.Analyze("a", "b", timed(10), timed(9)))
}

func TestNewTimeout_MarginNormalization(t *testing.T) {
	tests := []struct {
		name           string
		seconds, ratio float64
		want           float64
	}{
		{"negative seconds use default", -1, 1, 15},
		{"zero seconds kept", 0, 1, 10},
		{"zero ratio uses default", 0, 0, 15},
		{"negative ratio uses default", 0, -2, 15},
		{"ratio below one raised", 0, 0.5, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NewTimeout(nil, tt.seconds, tt.ratio).Required(10), 1e-9)
		})
	}
}

// =============================================================================
// Cycle
// =============================================================================

func TestCycle_Failures(t *testing.T) {
	g := graph.Build([]string{"A", "B", "C"}, []model.DependencyEdge{
		{Caller: "A", Callee: "B"}, {Caller: "B", Callee: "C"}, {Caller: "C", Callee: "A"},
	})

	failures := NewCycle(nil).Analyze(g)
	require.Len(t, failures, 1)
	assert.Equal(t, model.FailureCircularDependency, failures[0].FailureType)
	assert.Equal(t, model.SeverityCritical, failures[0].Severity)
	assert.Equal(t, "A", failures[0].ComponentA)
	assert.Equal(t, "B", failures[0].ComponentB)
	assert.Contains(t, failures[0].Description, "A -> B -> C -> A")
}

// =============================================================================
// Isolation
// =============================================================================

func TestRun_RecoversPanic(t *testing.T) {
	res := Run(model.FailureDataFormatMismatch, "a", "b", func() ([]model.PredictedFailure, error) {
		var c *model.Contract
		_ = c.Schemas["boom"]
		return nil, nil
	})

	require.False(t, res.OK())
	var ae *AnalyzerError
	require.True(t, errors.As(res.Err, &ae))
	assert.Equal(t, model.FailureDataFormatMismatch, ae.Category)
	assert.True(t, errors.Is(res.Err, ErrAnalyzerPanic))
	assert.Empty(t, res.Failures)
}

func TestRun_WrapsError(t *testing.T) {
	cause := errors.New("scanner exploded")
	res := Run(model.FailureMissingErrorHandling, "a", "b", func() ([]model.PredictedFailure, error) {
		return []model.PredictedFailure{{}}, cause
	})

	assert.ErrorIs(t, res.Err, cause)
	assert.Nil(t, res.Failures)
}

func TestRun_UsesCatalogGuidance(t *testing.T) {
	c := rules.NewDefault()
	res := Run(model.FailureTimeoutCascade, "a", "b", func() ([]model.PredictedFailure, error) {
		return NewTimeout(c, DefaultMarginSeconds, DefaultMarginRatio).Analyze("a", "b", timed(1), timed(1)), nil
	})

	require.True(t, res.OK())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, c.FixStrategy(model.FailureTimeoutCascade), res.Failures[0].FixStrategy)
}
