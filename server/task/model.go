// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/arzani/a2a"
)

// TaskModel is the database row shape for a persisted task. The full
// task is stored as a JSON payload; the state and agent type columns are
// mirrored for filtered queries.
type TaskModel struct {
	TaskID    string    `gorm:"column:task_id;primaryKey"`
	AgentType string    `gorm:"column:agent_type;index"`
	State     string    `gorm:"column:state;index"`
	Payload   []byte    `gorm:"column:payload"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName sets the gorm table name.
func (TaskModel) TableName() string {
	return "a2a_tasks"
}

// NewTaskModel converts a task into its row shape.
func NewTaskModel(task *a2a.Task) (*TaskModel, error) {
	payload, err := sonic.ConfigDefault.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task payload: %w", err)
	}

	return &TaskModel{
		TaskID:    task.ID,
		AgentType: task.AgentType,
		State:     string(task.State),
		Payload:   payload,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}, nil
}

// Task decodes the row's payload back into a task.
func (m *TaskModel) Task() (*a2a.Task, error) {
	var task a2a.Task
	if err := sonic.ConfigDefault.Unmarshal(m.Payload, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task payload: %w", err)
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid persisted task: %w", err)
	}
	return &task, nil
}
