// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/arzani/a2a"
)

// DatabaseStore is a DurableStore backed by a gorm database.
type DatabaseStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ DurableStore = (*DatabaseStore)(nil)

// NewDatabaseStore creates a DatabaseStore on an open gorm connection.
func NewDatabaseStore(db *gorm.DB, logger *slog.Logger) (*DatabaseStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DatabaseStore{db: db, logger: logger}, nil
}

// Initialize creates the tasks table if it doesn't exist.
func (s *DatabaseStore) Initialize(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&TaskModel{}); err != nil {
		return &a2a.PersistenceError{Op: "initialize", Err: err}
	}
	return nil
}

// Save upserts a task snapshot.
func (s *DatabaseStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	model, err := NewTaskModel(task)
	if err != nil {
		return &a2a.PersistenceError{Op: "save", TaskID: task.ID, Err: err}
	}

	if err := s.db.WithContext(ctx).Save(model).Error; err != nil {
		return &a2a.PersistenceError{Op: "save", TaskID: task.ID, Err: err}
	}
	return nil
}

// LoadAll reads every persisted snapshot. Rows that fail to decode are
// skipped and logged; a bad row must not be fatal to recovery.
func (s *DatabaseStore) LoadAll(ctx context.Context) ([]*a2a.Task, error) {
	var models []TaskModel
	if err := s.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, &a2a.PersistenceError{Op: "load", Err: err}
	}

	tasks := make([]*a2a.Task, 0, len(models))
	for _, model := range models {
		task, err := model.Task()
		if err != nil {
			s.logger.Warn("skipping undecodable task row",
				"task_id", model.TaskID, "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Delete removes a task's row.
func (s *DatabaseStore) Delete(ctx context.Context, taskID string) error {
	if err := s.db.WithContext(ctx).Delete(&TaskModel{}, "task_id = ?", taskID).Error; err != nil {
		return &a2a.PersistenceError{Op: "delete", TaskID: taskID, Err: err}
	}
	return nil
}

// Close shuts the underlying connection down.
func (s *DatabaseStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return &a2a.PersistenceError{Op: "close", Err: err}
	}
	return sqlDB.Close()
}
