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
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// contractSuffix is stripped from contract file names ("auth_api.yaml" → "auth").
const contractSuffix = "_api"

// contractExtensions are the document extensions treated as contracts.
// JSON is a subset of YAML, so one decoder serves all three.
var contractExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
}

// ContractID derives the component ID from a contract file name.
//
// Returns false for files that are not contract documents.
func ContractID(fileName string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !contractExtensions[ext] {
		return "", false
	}
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if strings.HasPrefix(base, ".") || base == "" {
		return "", false
	}
	base = strings.TrimSuffix(base, contractSuffix)
	if base == "" {
		return "", false
	}
	return base, true
}

// ParseContract decodes a contract document.
//
// # Description
//
// Reads `description` (falling back to `info.description`),
// `components.schemas.<Entity>.properties.<field>.{type,format,example}` and
// `x-timeout`. Unknown keys are ignored.
//
// # Outputs
//
//   - *model.Contract: The parsed contract.
//   - error: *MalformedContractError if the document does not parse or its root is not a mapping.
func ParseContract(componentID, path string, data []byte) (*model.Contract, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &MalformedContractError{Path: path, Err: err}
	}
	if root == nil {
		// empty document or a scalar/sequence root
		var probe any
		if err := yaml.Unmarshal(data, &probe); err == nil && probe != nil {
			return nil, &MalformedContractError{Path: path, Err: errors.New("document root is not a mapping")}
		}
		root = map[string]any{}
	}

	c := &model.Contract{
		ComponentID:    componentID,
		Source:         path,
		TimeoutSeconds: model.DefaultTimeoutSeconds,
		Schemas:        map[string]map[string]model.FieldSpec{},
	}

	c.Description = stringAt(root, "description")
	if c.Description == "" {
		if info, ok := root["info"].(map[string]any); ok {
			c.Description = stringAt(info, "description")
		}
	}

	if raw, ok := root["x-timeout"]; ok {
		seconds, err := toSeconds(raw)
		if err != nil {
			return nil, &MalformedContractError{Path: path, Err: fmt.Errorf("x-timeout: %w", err)}
		}
		c.TimeoutSeconds = seconds
		c.TimeoutDeclared = true
	}

	if components, ok := root["components"].(map[string]any); ok {
		if schemas, ok := components["schemas"].(map[string]any); ok {
			for entity, rawEntity := range schemas {
				entityMap, ok := rawEntity.(map[string]any)
				if !ok {
					continue
				}
				props, ok := entityMap["properties"].(map[string]any)
				if !ok {
					continue
				}
				fields := make(map[string]model.FieldSpec, len(props))
				for name, rawField := range props {
					fieldMap, ok := rawField.(map[string]any)
					if !ok {
						continue
					}
					spec := model.FieldSpec{
						Type:   stringAt(fieldMap, "type"),
						Format: stringAt(fieldMap, "format"),
					}
					if ex, ok := fieldMap["example"]; ok && ex != nil {
						spec.Example = fmt.Sprint(ex)
					}
					fields[name] = spec
				}
				c.Schemas[entity] = fields
			}
		}
	}

	return c, nil
}

// FieldDecl is one schema field declaration and the entity declaring it.
type FieldDecl struct {
	Entity string
	Spec   model.FieldSpec
}

// SchemaFields indexes the schema section by field name.
//
// Each name maps to every declaration of it, ordered by entity name.
func SchemaFields(c *model.Contract) map[string][]FieldDecl {
	out := map[string][]FieldDecl{}
	if c == nil {
		return out
	}
	entities := make([]string, 0, len(c.Schemas))
	for e := range c.Schemas {
		entities = append(entities, e)
	}
	sort.Strings(entities)
	for _, e := range entities {
		for name, spec := range c.Schemas[e] {
			out[name] = append(out[name], FieldDecl{Entity: e, Spec: spec})
		}
	}
	return out
}

func stringAt(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toSeconds(raw any) (float64, error) {
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "s"))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}
