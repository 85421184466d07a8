// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/arzani/a2a"
)

// MemoryStore is an in-memory DurableStore. Data is lost when the
// process stops; it exists for tests and for running without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

var _ DurableStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*a2a.Task),
	}
}

// Initialize implements DurableStore.
func (s *MemoryStore) Initialize(ctx context.Context) error {
	return nil
}

// Save persists a task snapshot in memory.
func (s *MemoryStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	return nil
}

// LoadAll returns every stored snapshot.
func (s *MemoryStore) LoadAll(ctx context.Context) ([]*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*a2a.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task.Clone())
	}
	return tasks, nil
}

// Delete removes a task snapshot.
func (s *MemoryStore) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	return nil
}

// Close implements DurableStore.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
