// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import "fmt"

// ValidationError reports a missing or malformed request field. It is
// the caller's fault and maps to HTTP 400.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// TaskNotFoundError reports a lookup for an unknown task ID.
type TaskNotFoundError struct {
	TaskID string
}

// Error implements the error interface.
func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

// AgentNotFoundError reports a lookup for an unknown agent name.
type AgentNotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent %q not found", e.Name)
}

// AuthenticationError reports a missing, invalid, or expired credential.
type AuthenticationError struct {
	Reason string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// InvalidTransitionError reports a rejected task state transition,
// either because the current state is terminal or because the target
// state is outside the enumeration.
type InvalidTransitionError struct {
	TaskID string
	From   TaskState
	To     TaskState
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid state transition from %q to %q", e.TaskID, e.From, e.To)
}

// UpstreamError reports a failure of a resolved specialist agent. Op is
// the protocol operation that failed ("discover", "send", "subscribe").
type UpstreamError struct {
	Agent string
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("agent %q: %s failed: %v", e.Agent, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a durable-store read or write failure. It is
// logged by the task manager and never propagated to callers.
type PersistenceError struct {
	Op     string
	TaskID string
	Err    error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s for task %s: %v", e.Op, e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
