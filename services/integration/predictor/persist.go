// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// SavePrediction writes the structured JSON form of a prediction.
//
// # Description
//
// Parent directories are created. The file is written to a temporary sibling
// and renamed into place.
//
// # Outputs
//
//   - error: *PersistenceError on any write failure.
func SavePrediction(pred *model.IntegrationPrediction, path string) error {
	if pred == nil {
		return &PersistenceError{Path: path, Err: errors.New("nil prediction")}
	}
	data, err := json.MarshalIndent(pred, "", "  ")
	if err != nil {
		return &PersistenceError{Path: path, Err: fmt.Errorf("encode: %w", err)}
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}

// LoadPrediction reads a prediction written by SavePrediction.
//
// Category tallies are recomputed from the failure list.
func LoadPrediction(path string) (*model.IntegrationPrediction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}
	return DecodePrediction(data)
}

// DecodePrediction parses the JSON form of a prediction.
func DecodePrediction(data []byte) (*model.IntegrationPrediction, error) {
	var raw model.IntegrationPrediction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	for i, f := range raw.PredictedFailures {
		if !f.Severity.Valid() {
			return nil, fmt.Errorf("decode prediction: failure %d has invalid severity %q", i, f.Severity)
		}
	}
	return model.NewIntegrationPrediction(raw.TotalComponents, raw.TotalPairsAnalyzed, raw.PredictedFailures), nil
}
