package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListMessages retrieves the most recent messages of a session, oldest first.
// GET /api/agent/messages?session_id=&limit=
func (h *Handler) ListMessages(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return badRequest(c, "session_id is required")
	}
	limit := queryLimit(c)

	messages, err := h.service.ListMessages(c.Request().Context(), userID(c), sessionID, limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"messages": messages,
		"has_more": limit > 0 && len(messages) == limit,
	})
}

// ClearMessages deletes a session's transcript.
// DELETE /api/agent/messages?session_id=
func (h *Handler) ClearMessages(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return badRequest(c, "session_id is required")
	}
	n, err := h.service.ClearMessages(c.Request().Context(), userID(c), sessionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "deleted": n})
}

// GetUsage reports the caller's monthly usage against their tier limits.
// GET /api/agent/usage?month=
func (h *Handler) GetUsage(c echo.Context) error {
	usage, err := h.service.GetUsage(c.Request().Context(), userID(c), c.QueryParam("month"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, usage)
}

// ListActivity returns the caller's activity feed, newest first.
// GET /api/agent/activity?session_id=&limit=
func (h *Handler) ListActivity(c echo.Context) error {
	entries, err := h.service.ListActivity(c.Request().Context(), userID(c), c.QueryParam("session_id"), queryLimit(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"activity": entries})
}
