// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import "fmt"

// Artifact is a structured output produced by an agent while working on
// a task, distinct from the conversational message history.
type Artifact struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Index       int            `json:"index"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Validate ensures the Artifact is valid.
func (a Artifact) Validate() error {
	if len(a.Parts) == 0 {
		return fmt.Errorf("artifact must contain at least one part")
	}
	for i, part := range a.Parts {
		if err := part.Validate(); err != nil {
			return fmt.Errorf("artifact part at index %d is invalid: %w", i, err)
		}
	}
	if a.Index < 0 {
		return fmt.Errorf("artifact index cannot be negative")
	}
	return nil
}
