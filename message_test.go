// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"testing"

	"github.com/go-json-experiment/json"
)

func TestPartValidate(t *testing.T) {
	tests := []struct {
		name    string
		part    Part
		wantErr bool
	}{
		{"valid text part", NewTextPart("hello"), false},
		{"valid data part", NewDataPart(map[string]any{"k": "v"}), false},
		{"valid file part", NewFilePart("aGVsbG8=", "text/plain", "hello.txt"), false},
		{"empty text", Part{Type: PartTypeText}, true},
		{"nil data", Part{Type: PartTypeData}, true},
		{"nil file", Part{Type: PartTypeFile}, true},
		{"file missing mimetype", Part{Type: PartTypeFile, File: &FileContent{Content: "x"}}, true},
		{"unknown type", Part{Type: "image"}, true},
		{"empty type", Part{Text: "hello"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.part.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		message Message
		wantErr bool
	}{
		{"valid user message", NewUserMessage(NewTextPart("hi")), false},
		{"valid agent message", NewAgentMessage(NewTextPart("hi"), NewDataPart(map[string]any{"a": 1})), false},
		{"invalid role", Message{Role: "system", Parts: []Part{NewTextPart("hi")}}, true},
		{"no parts", Message{Role: RoleUser}, true},
		{"invalid part", Message{Role: RoleUser, Parts: []Part{{Type: "blob"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.message.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageText(t *testing.T) {
	msg := NewAgentMessage(
		NewTextPart("first"),
		NewDataPart(map[string]any{"skip": true}),
		NewTextPart("second"),
	)

	want := "first\nsecond"
	if got := msg.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg := NewUserMessage(NewTextPart("hello"), NewFilePart("aGk=", "text/plain", "hi.txt"))

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if err := decoded.Validate(); err != nil {
		t.Errorf("decoded message invalid: %v", err)
	}
	if decoded.Parts[1].File == nil || decoded.Parts[1].File.Name != "hi.txt" {
		t.Errorf("file part not preserved: %+v", decoded.Parts[1])
	}
}
