// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2a provides the data model for the Agent-to-Agent (A2A) task
// orchestration protocol: tasks and their state machine, message and
// artifact envelopes, agent capability cards, and the event and error
// types shared by the client and server packages.
package a2a

// Protocol path and header constants.
const (
	// AgentCardWellKnownPath is the standard path for retrieving an
	// agent's public AgentCard, relative to the agent's base URL.
	//
	// Example: https://agent.example.com/.well-known/agent.json
	AgentCardWellKnownPath = "/.well-known/agent.json"

	// TaskSendPath is the synchronous task submission path, relative to
	// the agent's base URL.
	TaskSendPath = "/tasks/send"

	// TaskSendSubscribePath is the streaming task subscription path,
	// relative to the agent's base URL.
	TaskSendSubscribePath = "/tasks/sendSubscribe"

	// HeaderSignature carries the hex HMAC-SHA256 signature of a webhook
	// notification body.
	HeaderSignature = "X-Signature"

	// HeaderSignatureTimestamp carries the delivery timestamp of a signed
	// webhook notification, as Unix seconds.
	HeaderSignatureTimestamp = "X-Signature-Timestamp"
)
