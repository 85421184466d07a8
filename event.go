// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import "time"

// EventType names the kinds of events a task emits to stream subscribers
// and webhook receivers.
type EventType string

// Valid event types.
const (
	EventTypeStatus   EventType = "status"
	EventTypeMessage  EventType = "message"
	EventTypeArtifact EventType = "artifact"
	EventTypeError    EventType = "error"
)

// StatusConnected is the synthetic status emitted when a stream channel
// opens, so subscribers can distinguish "channel opened" from the first
// real task update.
const StatusConnected = "connected"

// StatusEvent reports a task state change to a subscriber. State is the
// wire value of a TaskState, or StatusConnected for the synthetic open
// event.
type StatusEvent struct {
	TaskID    string         `json:"task_id"`
	State     string         `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MessageEvent delivers a newly appended message to a subscriber.
type MessageEvent struct {
	TaskID    string    `json:"task_id"`
	Message   Message   `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ArtifactEvent delivers a newly appended artifact to a subscriber.
type ArtifactEvent struct {
	TaskID    string    `json:"task_id"`
	Artifact  Artifact  `json:"artifact"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent reports a task-level failure to a subscriber.
type ErrorEvent struct {
	TaskID    string    `json:"task_id"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Notification is the envelope POSTed to a registered webhook URL. The
// serialized form is also the exact byte sequence the HMAC signature
// covers.
type Notification struct {
	TaskID    string         `json:"task_id"`
	Event     EventType      `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      any            `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SendTaskRequest is the body of a synchronous task submission.
type SendTaskRequest struct {
	TaskID  string   `json:"task_id"`
	Message *Message `json:"message"`
}

// AgentEvent is the delta a remote agent returns, either as the body of
// a synchronous reply or as one decoded event of a streaming
// subscription. Absent fields mean "no change".
type AgentEvent struct {
	TaskID    string         `json:"task_id,omitempty"`
	State     TaskState      `json:"state,omitempty"`
	Message   *Message       `json:"message,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Error     string         `json:"error,omitempty"`
}
