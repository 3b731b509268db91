package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

const taskColumns = `id, session_id, user_id, title, description, status, priority, result, error_message, started_at, completed_at, metadata, created_at, updated_at`

func scanTask(row scanner) (*domain.Task, error) {
	var task domain.Task
	var description, result, errMsg, metadata sql.NullString
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(&task.ID, &task.SessionID, &task.UserID, &task.Title, &description, &task.Status,
		&task.Priority, &result, &errMsg, &startedAt, &completedAt, &metadata, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}
	task.Description = description.String
	task.Result = result.String
	task.ErrorMessage = errMsg.String
	task.Metadata = rawJSON(metadata)
	task.StartedAt = timePtr(startedAt)
	task.CompletedAt = timePtr(completedAt)
	return &task, nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// CreateTask inserts a new task.
func (s *SQLStore) CreateTask(ctx context.Context, task *domain.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	_, err := s.exec(ctx,
		`INSERT INTO agent_tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.SessionID, task.UserID, task.Title, nullString(task.Description), task.Status, task.Priority,
		nullString(task.Result), nullString(task.ErrorMessage), nullTime(task.StartedAt), nullTime(task.CompletedAt),
		nullJSON(task.Metadata), task.CreatedAt, task.UpdatedAt)
	return err
}

// GetTask retrieves a task scoped to its owner. Returns nil if absent.
func (s *SQLStore) GetTask(ctx context.Context, taskID, userID string) (*domain.Task, error) {
	task, err := scanTask(s.queryRow(ctx,
		`SELECT `+taskColumns+` FROM agent_tasks WHERE id = ? AND user_id = ?`, taskID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks lists a user's tasks, newest first.
func (s *SQLStore) ListTasks(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM agent_tasks WHERE user_id = ?`
	args := []interface{}{userID}
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateTask writes the mutable fields of a task.
func (s *SQLStore) UpdateTask(ctx context.Context, task *domain.Task) error {
	task.UpdatedAt = time.Now().UTC()
	_, err := s.exec(ctx,
		`UPDATE agent_tasks SET title = ?, description = ?, status = ?, priority = ?, result = ?, error_message = ?, started_at = ?, completed_at = ?, metadata = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		task.Title, nullString(task.Description), task.Status, task.Priority, nullString(task.Result),
		nullString(task.ErrorMessage), nullTime(task.StartedAt), nullTime(task.CompletedAt), nullJSON(task.Metadata),
		task.UpdatedAt, task.ID, task.UserID)
	return err
}

// DeleteTask removes a task owned by userID.
func (s *SQLStore) DeleteTask(ctx context.Context, taskID, userID string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM agent_tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return false, err
	}
	return affected(res)
}
