// Package v1 provides the agent HTTP API.
package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/service"
)

// UserHeader carries the caller identity set by the upstream gateway.
const UserHeader = "X-User-ID"

// Handler handles HTTP requests.
type Handler struct {
	service  *service.Service
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin checks happen at the gateway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers the agent routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/agent")

	api.POST("/chat/stream", h.StreamChat)
	api.GET("/chat/ws", h.ChatSocket)
	api.POST("/confirm", h.Confirm)

	api.GET("/sessions", h.ListSessions)
	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.PATCH("/sessions/:id", h.UpdateSession)
	api.DELETE("/sessions/:id", h.DeleteSession)

	api.GET("/messages", h.ListMessages)
	api.DELETE("/messages", h.ClearMessages)

	api.GET("/usage", h.GetUsage)
	api.GET("/activity", h.ListActivity)

	api.GET("/tasks", h.ListTasks)
	api.POST("/tasks", h.CreateTask)
	api.PATCH("/tasks", h.UpdateTask)
	api.DELETE("/tasks", h.DeleteTask)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func userID(c echo.Context) string {
	return c.Request().Header.Get(UserHeader)
}

func queryLimit(c echo.Context) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNoAgentAccess):
		return http.StatusForbidden
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrMissingConfirmation),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrInvalidSessionState),
		errors.Is(err, service.ErrMissingTaskFields),
		errors.Is(err, service.ErrMissingTaskID),
		errors.Is(err, service.ErrInvalidTaskStatus):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrToolCallNotFound),
		errors.Is(err, service.ErrTaskNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c echo.Context, err error) error {
	msg, ok := service.PublicMessage(err)
	if !ok {
		h.logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		msg = "Internal server error"
	}
	return c.JSON(statusFor(err), map[string]string{"error": msg})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}
