// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"encoding/json"
	"io"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// JSON renders the structured form with the model's field names.
type JSON struct {
	Indent bool
}

// Format renders the prediction as JSON.
func (f *JSON) Format(pred *model.IntegrationPrediction) (string, error) {
	if err := checkPrediction(pred); err != nil {
		return "", err
	}
	var data []byte
	var err error
	if f.Indent {
		data, err = json.MarshalIndent(pred, "", "  ")
	} else {
		data, err = json.Marshal(pred)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Name returns FormatJSON.
func (f *JSON) Name() FormatType {
	return FormatJSON
}

// FormatStreaming encodes the prediction to w.
func (f *JSON) FormatStreaming(pred *model.IntegrationPrediction, w io.Writer) error {
	if err := checkPrediction(pred); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(pred)
}
