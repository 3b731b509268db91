package domain

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the status of an agent task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether the status is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Finished reports whether the status ends the task.
func (s TaskStatus) Finished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task is a unit of work tracked inside a session.
type Task struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	UserID       string          `json:"user_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Status       TaskStatus      `json:"status"`
	Priority     int             `json:"priority"`
	Result       string          `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	SessionID string
	Status    TaskStatus
	Limit     int
	Offset    int
}

// CreateTaskRequest is the body of a task creation.
type CreateTaskRequest struct {
	SessionID   string          `json:"session_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    int             `json:"priority,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// UpdateTaskRequest is a partial task update; nil fields are left alone.
type UpdateTaskRequest struct {
	TaskID       string          `json:"task_id"`
	Title        *string         `json:"title,omitempty"`
	Description  *string         `json:"description,omitempty"`
	Status       *TaskStatus     `json:"status,omitempty"`
	Priority     *int            `json:"priority,omitempty"`
	Result       *string         `json:"result,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}
