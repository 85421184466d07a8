// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

// Package task owns the task lifecycle: the authoritative in-memory
// index, validated state transitions, and best-effort durable
// persistence used only for recovery at process restart.
package task

import (
	"context"

	"github.com/arzani/a2a"
)

// DurableStore is the recovery side-store behind the task manager. The
// in-memory index is always the authoritative live view; implementations
// are written to asynchronously and read once at startup.
type DurableStore interface {
	// Initialize prepares the storage backend for use.
	// This may involve creating tables, indexes, or other setup operations.
	Initialize(ctx context.Context) error

	// Save persists a task snapshot. An existing row for the same task
	// ID is overwritten.
	Save(ctx context.Context, task *a2a.Task) error

	// LoadAll returns every persisted task snapshot.
	LoadAll(ctx context.Context) ([]*a2a.Task, error)

	// Delete removes a task's row. Deleting an unknown task is a no-op.
	Delete(ctx context.Context, taskID string) error

	// Close cleanly shuts down the storage backend.
	Close(ctx context.Context) error
}
