package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

// ListSessions lists the caller's sessions.
// GET /api/agent/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	filter := domain.SessionFilter{
		Status: domain.SessionStatus(c.QueryParam("status")),
		Limit:  queryLimit(c),
	}
	sessions, err := h.service.ListSessions(c.Request().Context(), userID(c), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}

// CreateSession starts a session.
// POST /api/agent/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	session, err := h.service.CreateSession(c.Request().Context(), userID(c), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"session": session})
}

// GetSession returns one session.
// GET /api/agent/sessions/:id
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.service.GetSession(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"session": session})
}

// UpdateSession applies a partial update.
// PATCH /api/agent/sessions/:id
func (h *Handler) UpdateSession(c echo.Context) error {
	var req domain.UpdateSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	session, err := h.service.UpdateSession(c.Request().Context(), userID(c), c.Param("id"), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"session": session})
}

// DeleteSession removes a session.
// DELETE /api/agent/sessions/:id
func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.service.DeleteSession(c.Request().Context(), userID(c), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
