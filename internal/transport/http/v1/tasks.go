package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

// ListTasks lists the caller's tasks, newest first.
// GET /api/agent/tasks?session_id=&status=&limit=&offset=
func (h *Handler) ListTasks(c echo.Context) error {
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	filter := domain.TaskFilter{
		SessionID: c.QueryParam("session_id"),
		Status:    domain.TaskStatus(c.QueryParam("status")),
		Limit:     queryLimit(c),
		Offset:    offset,
	}
	tasks, err := h.service.ListTasks(c.Request().Context(), userID(c), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": tasks})
}

// CreateTask adds a task to a session.
// POST /api/agent/tasks
func (h *Handler) CreateTask(c echo.Context) error {
	var req domain.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	task, err := h.service.CreateTask(c.Request().Context(), userID(c), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"task": task})
}

// UpdateTask applies a partial update to a task.
// PATCH /api/agent/tasks
func (h *Handler) UpdateTask(c echo.Context) error {
	var req domain.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	task, err := h.service.UpdateTask(c.Request().Context(), userID(c), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"task": task})
}

// DeleteTask removes a task.
// DELETE /api/agent/tasks?task_id=
func (h *Handler) DeleteTask(c echo.Context) error {
	if err := h.service.DeleteTask(c.Request().Context(), userID(c), c.QueryParam("task_id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
