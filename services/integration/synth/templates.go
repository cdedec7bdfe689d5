// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package synth

// =============================================================================
// GO TARGET
// =============================================================================

const goSuiteTemplate = `// Code generated by foresight. DO NOT EDIT.

package {{.Package}}

import (
	"testing"

	"github.com/stretchr/testify/require"
)
{{if .Cases}}
// integrationFixed reports whether the fix condition for a predicted failure
// holds. Replace it with a check against the running components.
var integrationFixed = func(t *testing.T, failureType, componentA, componentB string) bool {
	t.Helper()
	t.Skipf("integration check for %s between %s and %s is not implemented", failureType, componentA, componentB)
	return false
}
{{range .Cases}}
// {{.Name}} guards against: {{comment .Failure.Description}}
//
// Fix: {{comment .Failure.FixStrategy}}
func {{.Name}}(t *testing.T) {
	require.True(t, integrationFixed(t, {{quote .Failure.FailureType}}, {{quote .Failure.ComponentA}}, {{quote .Failure.ComponentB}}),
		{{quote .Assertion}})
}
{{end}}{{else}}
func {{.Placeholder}}(t *testing.T) {
	predicted := 0
	require.Zero(t, predicted, "no failures predicted")
}
{{end}}`

// =============================================================================
// PYTHON TARGET
// =============================================================================

const pythonSuiteTemplate = `# Code generated by foresight. DO NOT EDIT.

import pytest
{{if .Cases}}

def integration_fixed(failure_type, component_a, component_b):
    """Return True when the fix condition for a predicted failure holds."""
    pytest.skip(
        "integration check for %s between %s and %s is not implemented"
        % (failure_type, component_a, component_b)
    )
{{range .Cases}}

def {{.Name}}():
    """{{docstring .Failure.Description}}

    Fix: {{docstring .Failure.FixStrategy}}
    """
    assert integration_fixed({{quote .Failure.FailureType}}, {{quote .Failure.ComponentA}}, {{quote .Failure.ComponentB}}), {{quote .Assertion}}
{{end}}{{else}}

def {{.Placeholder}}():
    predicted = 0
    assert predicted == 0, "no failures predicted"
{{end}}`
