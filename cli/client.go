package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

const userHeader = "X-User-ID"

// eventHandler receives one stream event. Returning an error stops reading.
type eventHandler func(event domain.EventType, data json.RawMessage) error

// Client calls the agent HTTP API.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		http:    &http.Client{},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(userHeader, c.userID)
	}
	return req, nil
}

// Do sends a JSON request and decodes a JSON response into out.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Stream posts a chat turn and feeds each server-sent event to handle.
func (c *Client) Stream(ctx context.Context, chat domain.ChatRequest, handle eventHandler) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/agent/chat/stream", chat)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return readEvents(resp.Body, handle)
}

// readEvents parses an event stream of "event:" and "data:" lines separated
// by blank lines.
func readEvents(r io.Reader, handle eventHandler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		event domain.EventType
		data  strings.Builder
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event != "" {
				if err := handle(event, json.RawMessage(data.String())); err != nil {
					return err
				}
				if event.Terminal() {
					return nil
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = domain.EventType(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// Socket is a WebSocket connection that carries one turn per frame.
type Socket struct {
	conn *websocket.Conn
}

// DialSocket opens the chat WebSocket.
func (c *Client) DialSocket(ctx context.Context) (*Socket, error) {
	u, err := url.Parse(c.baseURL + "/api/agent/chat/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.userID != "" {
		header.Set(userHeader, c.userID)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Socket{conn: conn}, nil
}

// Close closes the connection.
func (s *Socket) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// Send runs one chat turn and feeds its events to handle.
func (s *Socket) Send(chat domain.ChatRequest, handle eventHandler) error {
	if err := s.conn.WriteJSON(chat); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		var frame struct {
			Event domain.EventType `json:"event"`
			Data  json.RawMessage  `json:"data"`
		}
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("server closed the connection")
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := handle(frame.Event, frame.Data); err != nil {
			return err
		}
		if frame.Event.Terminal() {
			return nil
		}
	}
}
