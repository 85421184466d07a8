// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/arzani/a2a"
)

func TestCreateIdempotent(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	first := m.Create("t1", "broker")
	if first.State != a2a.TaskStateSubmitted {
		t.Errorf("state = %q, want submitted", first.State)
	}

	if _, err := m.Update("t1", Update{State: a2a.TaskStateWorking}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := m.AppendMessage("t1", a2a.NewUserMessage(a2a.NewTextPart("hi"))); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	// A second create with the same ID returns the existing record
	// unchanged: no state reset, no cleared history.
	second := m.Create("t1", "broker")
	if second.State != a2a.TaskStateWorking {
		t.Errorf("second create state = %q, want working", second.State)
	}
	if len(second.Messages) != 1 {
		t.Errorf("second create messages = %d, want 1", len(second.Messages))
	}
}

func TestCreateGeneratesID(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	task := m.Create("", "finance")
	if task.ID == "" {
		t.Error("expected generated ID")
	}
	if got, err := m.Get(task.ID); err != nil || got.AgentType != "finance" {
		t.Errorf("Get(%q) = %+v, %v", task.ID, got, err)
	}
}

func TestGetNotFound(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	_, err := m.Get("missing")
	var notFound *a2a.TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Get() error = %v, want TaskNotFoundError", err)
	}
}

func TestHappyPath(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	m.Create("t1", "broker")

	if _, err := m.Update("t1", Update{State: a2a.TaskStateWorking}); err != nil {
		t.Fatalf("transition to working: %v", err)
	}
	if _, err := m.AppendMessage("t1", a2a.NewUserMessage(a2a.NewTextPart("value my business"))); err != nil {
		t.Fatalf("append message: %v", err)
	}
	if _, err := m.Update("t1", Update{
		State:    a2a.TaskStateCompleted,
		Metadata: map[string]any{a2a.MetadataCompletionTime: time.Now().UTC().Format(time.RFC3339)},
	}); err != nil {
		t.Fatalf("transition to completed: %v", err)
	}

	got, err := m.Get("t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != a2a.TaskStateCompleted {
		t.Errorf("state = %q, want completed", got.State)
	}
	if len(got.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(got.Messages))
	}
	if _, ok := got.Metadata[a2a.MetadataCompletionTime]; !ok {
		t.Error("expected completion_time metadata")
	}
}

func TestInvalidTransitionFromTerminal(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	m.Create("t1", "broker")
	if _, err := m.Update("t1", Update{State: a2a.TaskStateFailed}); err != nil {
		t.Fatalf("transition to failed: %v", err)
	}

	_, err := m.Update("t1", Update{State: a2a.TaskStateWorking})
	var transitionErr *a2a.InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("Update() error = %v, want InvalidTransitionError", err)
	}

	got, _ := m.Get("t1")
	if got.State != a2a.TaskStateFailed {
		t.Errorf("state = %q, want failed to remain", got.State)
	}
}

func TestInvalidTargetState(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	m.Create("t1", "broker")
	_, err := m.Update("t1", Update{State: a2a.TaskState("paused")})
	var transitionErr *a2a.InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Errorf("Update() error = %v, want InvalidTransitionError", err)
	}
}

func TestRejectedTransitionAppliesNothing(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	m.Create("t1", "broker")
	m.Update("t1", Update{State: a2a.TaskStateCompleted})

	_, err := m.Update("t1", Update{
		State:    a2a.TaskStateWorking,
		Message:  &a2a.Message{Role: a2a.RoleUser, Parts: []a2a.Part{a2a.NewTextPart("late")}},
		Metadata: map[string]any{"late": true},
	})
	if err == nil {
		t.Fatal("expected rejection")
	}

	got, _ := m.Get("t1")
	if len(got.Messages) != 0 {
		t.Errorf("messages = %d, want 0 after rejected update", len(got.Messages))
	}
	if _, ok := got.Metadata["late"]; ok {
		t.Error("metadata should not be merged on rejected update")
	}
}

func TestAppendOnlyHistory(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	m.Create("t1", "broker")

	messages := []a2a.Message{
		a2a.NewUserMessage(a2a.NewTextPart("one")),
		a2a.NewAgentMessage(a2a.NewTextPart("two")),
		a2a.NewUserMessage(a2a.NewTextPart("three")),
	}
	for _, msg := range messages {
		if _, err := m.AppendMessage("t1", msg); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	artifact := a2a.Artifact{Parts: []a2a.Part{a2a.NewTextPart("report")}}
	if _, err := m.AppendArtifact("t1", artifact); err != nil {
		t.Fatalf("AppendArtifact() error = %v", err)
	}

	got, _ := m.Get("t1")
	if diff := cmp.Diff(messages, got.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if len(got.Artifacts) != 1 {
		t.Errorf("artifacts = %d, want 1", len(got.Artifacts))
	}

	// Appends must not change state.
	if got.State != a2a.TaskStateSubmitted {
		t.Errorf("state = %q, want submitted", got.State)
	}
}

func TestCancel(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	m.Create("t1", "broker")
	m.Update("t1", Update{State: a2a.TaskStateWorking})

	got, err := m.Cancel("t1", "user closed the tab")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if got.State != a2a.TaskStateCanceled {
		t.Errorf("state = %q, want canceled", got.State)
	}
	if got.Metadata[a2a.MetadataCancellationReason] != "user closed the tab" {
		t.Errorf("cancellation reason = %v", got.Metadata[a2a.MetadataCancellationReason])
	}
}

func TestCancelDefaultReason(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	m.Create("t1", "broker")
	got, err := m.Cancel("t1", "")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if got.Metadata[a2a.MetadataCancellationReason] != a2a.DefaultCancellationReason {
		t.Errorf("cancellation reason = %v", got.Metadata[a2a.MetadataCancellationReason])
	}
}

func TestCancelTerminalNoOp(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	m.Create("t1", "broker")
	before, err := m.Update("t1", Update{State: a2a.TaskStateCompleted})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := m.Cancel("t1", "too late")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if diff := cmp.Diff(before, got); diff != "" {
		t.Errorf("cancel of terminal task mutated record (-want +got):\n%s", diff)
	}
}

func TestList(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	m.Create("t1", "broker")
	time.Sleep(2 * time.Millisecond)
	m.Create("t2", "finance")
	time.Sleep(2 * time.Millisecond)
	m.Create("t3", "broker")
	m.Update("t3", Update{State: a2a.TaskStateWorking})

	all := m.List(Filter{})
	if len(all) != 3 {
		t.Fatalf("List() = %d tasks, want 3", len(all))
	}
	// Newest-created first.
	if all[0].ID != "t3" || all[2].ID != "t1" {
		t.Errorf("order = [%s %s %s], want [t3 t2 t1]", all[0].ID, all[1].ID, all[2].ID)
	}

	brokers := m.List(Filter{AgentType: "broker"})
	if len(brokers) != 2 {
		t.Errorf("broker tasks = %d, want 2", len(brokers))
	}

	working := m.List(Filter{State: a2a.TaskStateWorking})
	if len(working) != 1 || working[0].ID != "t3" {
		t.Errorf("working tasks = %+v, want [t3]", working)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	m := NewManager()
	defer m.Close(context.Background())

	got := m.Create("t1", "broker")
	got.State = a2a.TaskStateFailed
	got.Metadata["poison"] = true

	fresh, _ := m.Get("t1")
	if fresh.State != a2a.TaskStateSubmitted {
		t.Error("caller mutation leaked into the manager's record")
	}
	if _, ok := fresh.Metadata["poison"]; ok {
		t.Error("caller metadata mutation leaked into the manager's record")
	}
}

func TestPersistenceAndRecovery(t *testing.T) {
	store := NewMemoryStore()

	m := NewManager(WithStore(store))
	m.Create("t1", "broker")
	m.Update("t1", Update{State: a2a.TaskStateWorking})
	m.AppendMessage("t1", a2a.NewUserMessage(a2a.NewTextPart("hello")))
	m.Update("t1", Update{State: a2a.TaskStateCompleted})
	m.Create("t2", "finance")

	// Close drains the write queue into the store.
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	recovered := NewManager(WithStore(store))
	defer recovered.Close(context.Background())
	if err := recovered.Recover(context.Background()); err != nil {
		t.Fatalf("Recover() error = %v", err)
	}

	got, err := recovered.Get("t1")
	if err != nil {
		t.Fatalf("Get() after recovery error = %v", err)
	}
	if got.State != a2a.TaskStateCompleted {
		t.Errorf("recovered state = %q, want completed", got.State)
	}
	if len(got.Messages) != 1 {
		t.Errorf("recovered messages = %d, want 1", len(got.Messages))
	}

	// Recovery must not resurrect a terminal task.
	if _, err := recovered.Update("t1", Update{State: a2a.TaskStateWorking}); err == nil {
		t.Error("recovered terminal task accepted a transition")
	}

	if _, err := recovered.Get("t2"); err != nil {
		t.Errorf("Get(t2) after recovery error = %v", err)
	}
}

func TestPersistenceFailureDoesNotFailUpdate(t *testing.T) {
	m := NewManager(WithStore(failingStore{}))
	defer m.Close(context.Background())

	m.Create("t1", "broker")
	if _, err := m.Update("t1", Update{State: a2a.TaskStateWorking}); err != nil {
		t.Errorf("Update() error = %v, durability failure must not surface", err)
	}

	got, _ := m.Get("t1")
	if got.State != a2a.TaskStateWorking {
		t.Errorf("state = %q, want working", got.State)
	}
}

// failingStore always fails writes, for exercising best-effort
// persistence.
type failingStore struct{}

func (failingStore) Initialize(ctx context.Context) error { return nil }
func (failingStore) Save(ctx context.Context, task *a2a.Task) error {
	return errors.New("disk on fire")
}
func (failingStore) LoadAll(ctx context.Context) ([]*a2a.Task, error) { return nil, nil }
func (failingStore) Delete(ctx context.Context, taskID string) error  { return nil }
func (failingStore) Close(ctx context.Context) error                  { return nil }
