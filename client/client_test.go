// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"

	"github.com/arzani/a2a"
)

func TestDiscover(t *testing.T) {
	card := a2a.AgentCard{
		Name:    "broker",
		Version: "1.0.0",
		URL:     "http://broker.example.com",
		Capabilities: a2a.AgentCapabilities{
			Streaming: true,
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != a2a.AgentCardWellKnownPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		data, _ := json.Marshal(card)
		w.Write(data)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if diff := cmp.Diff(&card, got); diff != "" {
		t.Errorf("card mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, _ := New(srv.URL)
			_, err := c.Discover(context.Background())

			var discoveryErr *DiscoveryError
			if !errors.As(err, &discoveryErr) {
				t.Errorf("Discover() error = %v, want DiscoveryError", err)
			}
		})
	}
}

func TestSendTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != a2a.TaskSendPath {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer outbound-token" {
			t.Errorf("Authorization = %q, want bearer credential", got)
		}

		var req a2a.SendTaskRequest
		if err := json.UnmarshalRead(r.Body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.TaskID != "t1" {
			t.Errorf("task_id = %q, want t1", req.TaskID)
		}
		if req.Message == nil || req.Message.Role != a2a.RoleUser {
			t.Errorf("message = %+v, want user message", req.Message)
		}

		reply := a2a.AgentEvent{
			TaskID:  "t1",
			Message: &a2a.Message{Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.NewTextPart("done")}},
			Artifacts: []a2a.Artifact{
				{Parts: []a2a.Part{a2a.NewDataPart(map[string]any{"score": 0.9})}},
			},
		}
		data, _ := json.Marshal(reply)
		w.Write(data)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, WithBearerToken("outbound-token"))

	got, err := c.SendTask(context.Background(), "t1", a2a.NewUserMessage(a2a.NewTextPart("hello")))
	if err != nil {
		t.Fatalf("SendTask() error = %v", err)
	}
	if got.Message == nil || got.Message.Text() != "done" {
		t.Errorf("reply message = %+v", got.Message)
	}
	if len(got.Artifacts) != 1 {
		t.Errorf("reply artifacts = %d, want 1", len(got.Artifacts))
	}
}

func TestSendTaskUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model overloaded"}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_, err := c.SendTask(context.Background(), "t1", a2a.NewUserMessage(a2a.NewTextPart("hello")))

	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("SendTask() error = %v, want SendError", err)
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error should carry upstream text, got %v", err)
	}
}

func TestSendTaskTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, WithTimeout(20*time.Millisecond))
	_, err := c.SendTask(context.Background(), "t1", a2a.NewUserMessage(a2a.NewTextPart("hello")))

	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Errorf("SendTask() error = %v, want SendError on timeout", err)
	}
}

func TestNewValidatesBaseURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty base URL")
	}
}
