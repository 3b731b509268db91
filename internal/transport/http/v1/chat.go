package v1

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/service"
)

const socketWriteTimeout = 10 * time.Second

// StreamChat runs one agent turn and streams its events.
// POST /api/agent/chat/stream
func (h *Handler) StreamChat(c echo.Context) error {
	sink, err := newSSEWriter(c.Response())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	// Rejections travel as an error event on an open stream, like every
	// other outcome of the turn.
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		msg, _ := service.PublicMessage(service.ErrMissingFields)
		_ = sink.Emit(domain.EventError, domain.ErrorEventData{Message: msg})
		return nil
	}
	if err := h.service.StreamChat(c.Request().Context(), userID(c), req, sink); err != nil {
		h.logger.Warn("agent turn ended with error", "session_id", req.SessionID, "error", err)
	}
	return nil
}

// socketFrame is one event on the WebSocket mirror of the chat stream.
type socketFrame struct {
	Event domain.EventType `json:"event"`
	Data  any              `json:"data"`
}

type socketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socketSink) Emit(event domain.EventType, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(socketFrame{Event: event, Data: data})
}

// ChatSocket serves the chat stream over a WebSocket. Each text frame from
// the client is a chat request; the turn's events are written back as
// {"event", "data"} frames. Turns on one socket run one at a time.
// GET /api/agent/chat/ws
func (h *Handler) ChatSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", "error", err)
		return nil
	}
	defer conn.Close()

	user := userID(c)
	sink := &socketSink{conn: conn}
	ctx := c.Request().Context()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return nil
		}

		var req domain.ChatRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			if err := sink.Emit(domain.EventError, domain.ErrorEventData{Message: "invalid request body"}); err != nil {
				return nil
			}
			continue
		}
		if err := h.service.StreamChat(ctx, user, req, sink); err != nil {
			h.logger.Warn("agent turn ended with error", "session_id", req.SessionID, "error", err)
		}
	}
}

// Confirm resolves a pending tool call.
// POST /api/agent/confirm
func (h *Handler) Confirm(c echo.Context) error {
	var req domain.ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	resp, err := h.service.Confirm(c.Request().Context(), userID(c), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

var _ service.EventSink = (*socketSink)(nil)
var _ service.EventSink = (*sseWriter)(nil)
