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
)

// Sentinel errors for the repository package.
var (
	// ErrMissingInput indicates the components directory does not exist.
	ErrMissingInput = errors.New("missing input: components directory not found")

	// ErrUnknownComponent indicates a component ID that was not discovered.
	ErrUnknownComponent = errors.New("unknown component")
)

// MalformedContractError reports a contract document that failed to parse.
//
// The repository logs it and treats the contract as absent; it is exported so
// callers of ParseContract can inspect the path.
type MalformedContractError struct {
	Path string
	Err  error
}

func (e *MalformedContractError) Error() string {
	return fmt.Sprintf("malformed contract %s: %v", e.Path, e.Err)
}

func (e *MalformedContractError) Unwrap() error {
	return e.Err
}
