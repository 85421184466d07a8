// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/arzani/a2a"
)

// persistQueueSize bounds the async durability queue. Writes beyond the
// bound are dropped with a log line; persistence is best-effort and the
// in-memory index stays authoritative.
const persistQueueSize = 256

// Update describes one mutation of a task record. Zero fields mean "no
// change"; Metadata is merged, Message and Artifacts are appended.
type Update struct {
	State     a2a.TaskState
	Message   *a2a.Message
	Artifacts []a2a.Artifact
	Metadata  map[string]any
}

// Filter selects tasks for List. Zero fields match everything.
type Filter struct {
	State     a2a.TaskState
	AgentType string
}

// Manager owns task lifecycle state. The in-memory index is the
// authoritative live view; the optional DurableStore is written behind a
// queue and read only by Recover.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task

	store  DurableStore
	logger *slog.Logger

	persistCh chan *a2a.Task
	stopOnce  sync.Once
	stopped   chan struct{}
	writerWG  sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore attaches a durable side-store for recovery.
func WithStore(store DurableStore) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager and starts its persistence writer when a
// store is attached.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		tasks:     make(map[string]*a2a.Task),
		logger:    slog.Default(),
		persistCh: make(chan *a2a.Task, persistQueueSize),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store != nil {
		m.writerWG.Add(1)
		go m.persistLoop()
	}

	return m
}

// Create creates a task in the submitted state. It is idempotent: if id
// already names a task, the existing record is returned unchanged. An
// empty id generates one.
func (m *Manager) Create(id, agentType string) *a2a.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if existing, ok := m.tasks[id]; ok {
			return existing.Clone()
		}
	}

	task := a2a.NewTask(id, agentType)
	m.tasks[task.ID] = task
	m.enqueuePersist(task.Clone())

	m.logger.Info("created task", "task_id", task.ID, "agent_type", agentType)
	return task.Clone()
}

// Get returns a snapshot of the task or a TaskNotFoundError. It never
// touches the durable store.
func (m *Manager) Get(id string) (*a2a.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, &a2a.TaskNotFoundError{TaskID: id}
	}
	return task.Clone(), nil
}

// Update applies one mutation to a task. A state change is validated
// against the transition table: transitions out of a terminal state and
// transitions to a state outside the enumeration are rejected with
// InvalidTransitionError and nothing is applied. On acceptance the
// durability write is queued asynchronously.
func (m *Manager) Update(id string, update Update) (*a2a.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, &a2a.TaskNotFoundError{TaskID: id}
	}

	if update.State != "" && update.State != task.State {
		if !task.State.CanTransitionTo(update.State) {
			return nil, &a2a.InvalidTransitionError{TaskID: id, From: task.State, To: update.State}
		}
		task.State = update.State
	}

	if update.Message != nil {
		task.Messages = append(task.Messages, *update.Message)
	}
	task.Artifacts = append(task.Artifacts, update.Artifacts...)
	task.MergeMetadata(update.Metadata)
	task.UpdatedAt = time.Now().UTC()

	m.enqueuePersist(task.Clone())
	return task.Clone(), nil
}

// AppendMessage appends a message without changing state.
func (m *Manager) AppendMessage(id string, message a2a.Message) (*a2a.Task, error) {
	return m.Update(id, Update{Message: &message})
}

// AppendArtifact appends an artifact without changing state.
func (m *Manager) AppendArtifact(id string, artifact a2a.Artifact) (*a2a.Task, error) {
	return m.Update(id, Update{Artifacts: []a2a.Artifact{artifact}})
}

// Cancel marks a non-terminal task canceled, recording the reason in
// metadata. Canceling a task already in a terminal state is a no-op
// that returns the current record.
func (m *Manager) Cancel(id, reason string) (*a2a.Task, error) {
	m.mu.RLock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.RUnlock()
		return nil, &a2a.TaskNotFoundError{TaskID: id}
	}
	if task.State.IsTerminal() {
		clone := task.Clone()
		m.mu.RUnlock()
		return clone, nil
	}
	m.mu.RUnlock()

	if reason == "" {
		reason = a2a.DefaultCancellationReason
	}

	updated, err := m.Update(id, Update{
		State:    a2a.TaskStateCanceled,
		Metadata: map[string]any{a2a.MetadataCancellationReason: reason},
	})
	if err != nil {
		var transitionErr *a2a.InvalidTransitionError
		if errors.As(err, &transitionErr) {
			// Lost the race with a terminal update; cancel is a no-op.
			return m.Get(id)
		}
		return nil, err
	}
	return updated, nil
}

// List returns snapshots matching the filter, newest-created first.
func (m *Manager) List(filter Filter) []*a2a.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tasks []*a2a.Task
	for _, task := range m.tasks {
		if filter.State != "" && task.State != filter.State {
			continue
		}
		if filter.AgentType != "" && task.AgentType != filter.AgentType {
			continue
		}
		tasks = append(tasks, task.Clone())
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}

// Recover repopulates the in-memory index from the durable store. It
// must run once, before any inbound request is accepted. Tasks are
// loaded as persisted: a terminal task stays terminal.
func (m *Manager) Recover(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	tasks, err := m.store.LoadAll(ctx)
	if err != nil {
		m.logger.Error("task recovery failed", "error", err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			m.logger.Warn("skipping invalid recovered task", "task_id", task.ID, "error", err)
			continue
		}
		m.tasks[task.ID] = task
	}

	m.logger.Info("recovered tasks from durable store", "count", len(m.tasks))
	return nil
}

// Close stops the persistence writer after draining queued writes and
// closes the durable store.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopped) })

	if m.store == nil {
		return nil
	}

	m.writerWG.Wait()
	return m.store.Close(ctx)
}

// enqueuePersist queues a snapshot for the background writer. Callers
// hold the index lock; the send must not block, so a full queue drops
// the write with a log line.
func (m *Manager) enqueuePersist(snapshot *a2a.Task) {
	if m.store == nil {
		return
	}

	select {
	case <-m.stopped:
	case m.persistCh <- snapshot:
	default:
		m.logger.Warn("persistence queue full, dropping write", "task_id", snapshot.ID)
	}
}

func (m *Manager) persistLoop() {
	defer m.writerWG.Done()

	for {
		select {
		case snapshot := <-m.persistCh:
			m.persist(snapshot)
		case <-m.stopped:
			// Drain what's already queued, then stop.
			for {
				select {
				case snapshot := <-m.persistCh:
					m.persist(snapshot)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) persist(snapshot *a2a.Task) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.store.Save(ctx, snapshot); err != nil {
		// At-least-once, best-effort: the in-memory update already
		// succeeded and must not be rolled back.
		m.logger.Error("failed to persist task", "task_id", snapshot.ID, "error", err)
	}
}
