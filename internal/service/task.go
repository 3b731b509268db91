package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

const (
	defaultTaskLimit = 20
	maxTaskLimit     = 100
)

var taskActivity = map[domain.TaskStatus]struct {
	action domain.ActivityAction
	title  string
}{
	domain.TaskStatusInProgress: {domain.ActivityTaskStarted, "Task Started"},
	domain.TaskStatusCompleted:  {domain.ActivityTaskCompleted, "Task Completed"},
	domain.TaskStatusFailed:     {domain.ActivityTaskFailed, "Task Failed"},
	domain.TaskStatusCancelled:  {domain.ActivityTaskCancelled, "Task Cancelled"},
}

// ListTasks lists the user's tasks, newest first.
func (s *Service) ListTasks(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidTaskStatus
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultTaskLimit
	}
	if filter.Limit > maxTaskLimit {
		filter.Limit = maxTaskLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	tasks, err := s.store.ListTasks(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask adds a pending task to one of the user's sessions.
func (s *Service) CreateTask(ctx context.Context, userID string, req domain.CreateTaskRequest) (*domain.Task, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if req.SessionID == "" || title == "" {
		return nil, ErrMissingTaskFields
	}
	session, err := s.ownedSession(ctx, userID, req.SessionID)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		ID:          uuid.New().String(),
		SessionID:   session.ID,
		UserID:      userID,
		Title:       title,
		Description: req.Description,
		Status:      domain.TaskStatusPending,
		Priority:    req.Priority,
		Metadata:    req.Metadata,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.logActivity(ctx, userID, session.ID, domain.ActivityTaskCreated, "Task Created", title,
		map[string]any{"task_id": task.ID})
	return task, nil
}

// UpdateTask applies a partial update. Entering in_progress stamps the start
// time; a finishing status stamps the completion time. Completing a task
// counts it against the session and the monthly usage once.
func (s *Service) UpdateTask(ctx context.Context, userID string, req domain.UpdateTaskRequest) (*domain.Task, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	if req.TaskID == "" {
		return nil, ErrMissingTaskID
	}
	task, err := s.store.GetTask(ctx, req.TaskID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	previous := task.Status

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, ErrMissingTaskFields
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.Result != nil {
		task.Result = *req.Result
	}
	if req.ErrorMessage != nil {
		task.ErrorMessage = *req.ErrorMessage
	}
	if len(req.Metadata) > 0 {
		task.Metadata = req.Metadata
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, ErrInvalidTaskStatus
		}
		task.Status = *req.Status
		now := s.now().UTC()
		switch {
		case task.Status == domain.TaskStatusInProgress:
			task.StartedAt = &now
			task.CompletedAt = nil
		case task.Status.Finished():
			task.CompletedAt = &now
		}
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if req.Status != nil {
		if a, ok := taskActivity[task.Status]; ok {
			s.logActivity(ctx, userID, task.SessionID, a.action, a.title, task.Title, map[string]any{"task_id": task.ID})
		}
		if task.Status == domain.TaskStatusCompleted && previous != domain.TaskStatusCompleted {
			if err := s.store.IncrementSessionTasks(ctx, task.SessionID, 1); err != nil {
				s.logger.Warn("failed to update session tasks", "session_id", task.SessionID, "error", err)
			}
			s.incrementUsage(ctx, userID, domain.UsageDelta{TasksExecuted: 1})
		}
	}
	return task, nil
}

// DeleteTask removes one of the user's tasks.
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	if err := s.authorize(ctx, userID); err != nil {
		return err
	}
	if taskID == "" {
		return ErrMissingTaskID
	}
	deleted, err := s.store.DeleteTask(ctx, taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if !deleted {
		return ErrTaskNotFound
	}
	return nil
}
