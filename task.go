// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

// Valid task states.
const (
	// TaskStateSubmitted is the initial state of every task.
	TaskStateSubmitted TaskState = "submitted"

	// TaskStateWorking indicates the task is being processed by an agent.
	TaskStateWorking TaskState = "working"

	// TaskStateInputRequired indicates the task is waiting for user input.
	TaskStateInputRequired TaskState = "input-required"

	// TaskStateCompleted indicates the task finished successfully. Terminal.
	TaskStateCompleted TaskState = "completed"

	// TaskStateFailed indicates the task failed with an error. Terminal.
	TaskStateFailed TaskState = "failed"

	// TaskStateCanceled indicates the task was canceled. Terminal.
	TaskStateCanceled TaskState = "canceled"
)

// IsValid reports whether s is a member of the task state enumeration.
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether s permits no further transitions.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a task in state s may move to next.
// Any non-terminal state may move to any valid state; terminal states
// may move nowhere.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	return !s.IsTerminal()
}

// Metadata keys recorded by the orchestrator.
const (
	// MetadataError carries the upstream error text of a failed task.
	MetadataError = "error"

	// MetadataCancellationReason carries the reason a task was canceled.
	MetadataCancellationReason = "cancellation_reason"

	// MetadataCompletionTime carries the RFC3339 completion timestamp.
	MetadataCompletionTime = "completion_time"
)

// DefaultCancellationReason is recorded when a caller cancels a task
// without supplying a reason.
const DefaultCancellationReason = "User requested cancellation"

// Task is the central record tracking one unit of work routed to a
// specialist agent. The messages and artifacts sequences are append-only;
// state is mutated only through validated transitions.
type Task struct {
	ID        string         `json:"task_id"`
	AgentType string         `json:"agent_type"`
	State     TaskState      `json:"state"`
	Messages  []Message      `json:"messages"`
	Artifacts []Artifact     `json:"artifacts"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewTask creates a task in the submitted state. If id is empty a new
// UUID is generated.
func NewTask(id, agentType string) *Task {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &Task{
		ID:        id,
		AgentType: agentType,
		State:     TaskStateSubmitted,
		Messages:  []Message{},
		Artifacts: []Artifact{},
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate ensures the Task is well formed.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if !t.State.IsValid() {
		return fmt.Errorf("invalid task state: %s", t.State)
	}
	return nil
}

// Clone returns a deep copy of the task so callers can hold a snapshot
// without racing mutations applied by the owner.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Messages = make([]Message, len(t.Messages))
	copy(clone.Messages, t.Messages)
	clone.Artifacts = make([]Artifact, len(t.Artifacts))
	copy(clone.Artifacts, t.Artifacts)
	clone.Metadata = make(map[string]any, len(t.Metadata))
	for k, v := range t.Metadata {
		clone.Metadata[k] = v
	}
	return &clone
}

// MergeMetadata merges m into the task's metadata bag. Existing keys are
// overwritten; keys absent from m are preserved.
func (t *Task) MergeMetadata(m map[string]any) {
	if len(m) == 0 {
		return
	}
	if t.Metadata == nil {
		t.Metadata = make(map[string]any, len(m))
	}
	for k, v := range m {
		t.Metadata[k] = v
	}
}
