// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"
	"strings"
)

// Role represents the role of a message sender.
type Role string

// Role constants for message senders.
const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// PartType discriminates the closed set of message part variants.
type PartType string

// Valid part types.
const (
	PartTypeText PartType = "text"
	PartTypeData PartType = "data"
	PartTypeFile PartType = "file"
)

// FileContent carries an embedded file within a file part. Content is
// base64 encoded.
type FileContent struct {
	Content  string `json:"content"`
	MimeType string `json:"mimetype"`
	Name     string `json:"name,omitempty"`
}

// Part is one segment of a message or artifact body. It is a tagged
// union: exactly the field matching Type is populated, and unknown or
// mismatched shapes are rejected at the protocol boundary.
type Part struct {
	Type PartType       `json:"type"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
	File *FileContent   `json:"file,omitempty"`
	Name string         `json:"name,omitempty"`
}

// NewTextPart creates a text part.
func NewTextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// NewDataPart creates a structured data part.
func NewDataPart(data map[string]any) Part {
	return Part{Type: PartTypeData, Data: data}
}

// NewFilePart creates a file part with base64 encoded content.
func NewFilePart(content, mimeType, filename string) Part {
	return Part{Type: PartTypeFile, File: &FileContent{
		Content:  content,
		MimeType: mimeType,
		Name:     filename,
	}}
}

// Validate ensures the part carries the content its type tag promises.
func (p Part) Validate() error {
	switch p.Type {
	case PartTypeText:
		if p.Text == "" {
			return fmt.Errorf("text part text cannot be empty")
		}
	case PartTypeData:
		if p.Data == nil {
			return fmt.Errorf("data part data cannot be nil")
		}
	case PartTypeFile:
		if p.File == nil {
			return fmt.Errorf("file part file cannot be nil")
		}
		if p.File.Content == "" {
			return fmt.Errorf("file part content cannot be empty")
		}
		if p.File.MimeType == "" {
			return fmt.Errorf("file part mimetype cannot be empty")
		}
	default:
		return fmt.Errorf("unknown part type: %q", p.Type)
	}
	return nil
}

// Message is one conversational envelope exchanged between a user and an
// agent within a task.
type Message struct {
	Role     Role           `json:"role"`
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewUserMessage creates a message with the user role.
func NewUserMessage(parts ...Part) Message {
	return Message{Role: RoleUser, Parts: parts}
}

// NewAgentMessage creates a message with the agent role.
func NewAgentMessage(parts ...Part) Message {
	return Message{Role: RoleAgent, Parts: parts}
}

// Validate ensures the Message is valid.
func (m Message) Validate() error {
	if m.Role != RoleUser && m.Role != RoleAgent {
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	if len(m.Parts) == 0 {
		return fmt.Errorf("message must contain at least one part")
	}
	for i, part := range m.Parts {
		if err := part.Validate(); err != nil {
			return fmt.Errorf("message part at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// Text returns the concatenated content of all text parts, joined with
// newlines. Non-text parts are skipped.
func (m Message) Text() string {
	var texts []string
	for _, part := range m.Parts {
		if part.Type == PartTypeText {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}
