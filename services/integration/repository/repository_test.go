// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/foresight/services/integration/model"
)

func newTestRepo(t *testing.T) (*FSRepository, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "components"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "contracts"), 0o755))

	repo, err := New(Options{
		ComponentsDir: filepath.Join(root, "components"),
		ContractsDir:  filepath.Join(root, "contracts"),
		Extensions:    []string{".py", ".go"},
		SkipDirs:      []string{"vendor"},
		MaxFileBytes:  1024,
	})
	require.NoError(t, err)
	return repo, root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestComponents_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)

	components, err := repo.Components(context.Background())
	require.NoError(t, err)
	assert.Empty(t, components)
}

func TestComponents_FiltersHiddenAndSorts(t *testing.T) {
	repo, root := newTestRepo(t)
	for _, name := range []string{"user-service", "auth-service", "payment-service", ".hidden"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "components", name), 0o755))
	}
	writeFile(t, filepath.Join(root, "components", "README.md"), "not a component")

	components, err := repo.Components(context.Background())
	require.NoError(t, err)
	require.Len(t, components, 3)
	assert.Equal(t, "auth-service", components[0].ID)
	assert.Equal(t, "payment-service", components[1].ID)
	assert.Equal(t, "user-service", components[2].ID)
}

func TestComponents_MissingDir(t *testing.T) {
	repo, err := New(Options{ComponentsDir: filepath.Join(t.TempDir(), "absent")})
	require.NoError(t, err)

	_, err = repo.Components(context.Background())
	assert.True(t, errors.Is(err, ErrMissingInput))
}

func TestContracts_LoadsAndStripsAPISuffix(t *testing.T) {
	repo, root := newTestRepo(t)
	writeFile(t, filepath.Join(root, "contracts", "auth-service.yaml"), "openapi: 3.0.0\ninfo:\n  title: Auth API\n")
	writeFile(t, filepath.Join(root, "contracts", "user-service_api.yaml"), "openapi: 3.0.0\ninfo:\n  title: User API\n")

	contracts, err := repo.Contracts(context.Background())
	require.NoError(t, err)
	assert.Len(t, contracts, 2)
	assert.Contains(t, contracts, "auth-service")
	assert.Contains(t, contracts, "user-service")
}

func TestContracts_InvalidYAMLSkipped(t *testing.T) {
	repo, root := newTestRepo(t)
	writeFile(t, filepath.Join(root, "contracts", "invalid.yaml"), "invalid: yaml: content:")
	writeFile(t, filepath.Join(root, "contracts", "good.yaml"), "description: fine\n")

	contracts, err := repo.Contracts(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, contracts, "invalid")
	assert.Contains(t, contracts, "good")
}

func TestContracts_MissingDirIsEmpty(t *testing.T) {
	repo, err := New(Options{
		ComponentsDir: t.TempDir(),
		ContractsDir:  filepath.Join(t.TempDir(), "absent"),
	})
	require.NoError(t, err)

	contracts, err := repo.Contracts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, contracts)
}

func TestParseContract_Fields(t *testing.T) {
	doc := `
description: Uses ISO8601 format for dates
x-timeout: 12
components:
  schemas:
    User:
      properties:
        id:
          type: string
          format: uuid
          example: 3fa85f64-5717-4562-b3fc-2c963f66afa6
        age:
          type: integer
`
	c, err := ParseContract("svc", "svc.yaml", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "Uses ISO8601 format for dates", c.Description)
	assert.True(t, c.TimeoutDeclared)
	assert.Equal(t, 12.0, c.Timeout())
	require.Contains(t, c.Schemas, "User")
	assert.Equal(t, "uuid", c.Schemas["User"]["id"].Format)
	assert.Equal(t, "3fa85f64-5717-4562-b3fc-2c963f66afa6", c.Schemas["User"]["id"].Example)
	assert.Equal(t, "integer", c.Schemas["User"]["age"].Type)
}

func TestParseContract_DefaultTimeout(t *testing.T) {
	c, err := ParseContract("svc", "svc.yaml", []byte("description: none\n"))
	require.NoError(t, err)
	assert.False(t, c.TimeoutDeclared)
	assert.Equal(t, 30.0, c.Timeout())
}

func TestParseContract_StringTimeout(t *testing.T) {
	c, err := ParseContract("svc", "svc.yaml", []byte("x-timeout: \"45s\"\n"))
	require.NoError(t, err)
	assert.Equal(t, 45.0, c.Timeout())
}

func TestParseContract_Malformed(t *testing.T) {
	_, err := ParseContract("svc", "svc.yaml", []byte("- just\n- a list\n"))
	var malformed *MalformedContractError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "svc.yaml", malformed.Path)
}

func TestParseContract_EmptyDocument(t *testing.T) {
	c, err := ParseContract("svc", "svc.yaml", []byte(""))
	require.NoError(t, err)
	assert.Empty(t, c.Description)
}

func TestContractID(t *testing.T) {
	cases := map[string]string{
		"auth.yaml":         "auth",
		"auth_api.yml":      "auth",
		"user-service.json": "user-service",
	}
	for name, want := range cases {
		got, ok := ContractID(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	for _, name := range []string{"notes.txt", ".hidden.yaml", "_api.yaml"} {
		_, ok := ContractID(name)
		assert.False(t, ok, name)
	}
}

func TestSources_FiltersAndCaches(t *testing.T) {
	repo, root := newTestRepo(t)
	comp := filepath.Join(root, "components", "svc")
	writeFile(t, filepath.Join(comp, "main.py"), "import os\n")
	writeFile(t, filepath.Join(comp, "pkg", "client.go"), "package pkg\n")
	writeFile(t, filepath.Join(comp, "notes.md"), "ignored extension")
	writeFile(t, filepath.Join(comp, ".git", "config.py"), "hidden")
	writeFile(t, filepath.Join(comp, "vendor", "lib.py"), "skipped dir")
	writeFile(t, filepath.Join(comp, "big.py"), string(make([]byte, 2048)))
	writeFile(t, filepath.Join(comp, "go.mod"), "module example.com/svc\n")

	files, err := repo.Sources(context.Background(), "svc")
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"go.mod", "main.py", "pkg/client.go"}, paths)

	// cached result survives deletion until Invalidate
	require.NoError(t, os.Remove(filepath.Join(comp, "main.py")))
	again, err := repo.Sources(context.Background(), "svc")
	require.NoError(t, err)
	assert.Len(t, again, 3)

	repo.Invalidate()
	fresh, err := repo.Sources(context.Background(), "svc")
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestSources_UnknownComponent(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Sources(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrUnknownComponent))

	_, err = repo.Sources(context.Background(), "../escape")
	assert.True(t, errors.Is(err, ErrUnknownComponent))
}

func TestSchemaFields_KeepsEveryEntity(t *testing.T) {
	doc := `
components:
  schemas:
    B:
      properties:
        id: {type: integer}
    A:
      properties:
        id: {type: string, format: uuid}
        name: {type: string}
`
	c, err := ParseContract("svc", "svc.yaml", []byte(doc))
	require.NoError(t, err)

	fields := SchemaFields(c)
	assert.Equal(t, []FieldDecl{
		{Entity: "A", Spec: model.FieldSpec{Type: "string", Format: "uuid"}},
		{Entity: "B", Spec: model.FieldSpec{Type: "integer"}},
	}, fields["id"])
	assert.Equal(t, []FieldDecl{{Entity: "A", Spec: model.FieldSpec{Type: "string"}}}, fields["name"])
	assert.Empty(t, SchemaFields(nil))
}
