package domain

import "encoding/json"

// StartEventData is the data for a start event.
type StartEventData struct {
	SessionID string `json:"session_id"`
}

// TokenEventData is the data for a token event.
type TokenEventData struct {
	Content string `json:"content"`
}

// ToolStartEventData is the data for a tool_start event.
type ToolStartEventData struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Arguments            json.RawMessage `json:"arguments"`
	RequiresConfirmation bool            `json:"requiresConfirmation"`
	IsMCP                bool            `json:"isMCP"`
}

// ToolPendingEventData is the data for a tool_pending event.
type ToolPendingEventData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ToolCompleteEventData is the data for a tool_complete event.
type ToolCompleteEventData struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result"`
}

// SessionRenamedEventData is the data for a session_renamed event.
type SessionRenamedEventData struct {
	Name string `json:"name"`
}

// TokenUsage is the token accounting reported on done.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// DoneEventData is the data for a done event.
type DoneEventData struct {
	Response             string     `json:"response"`
	ToolCalls            []ToolCall `json:"tool_calls"`
	PendingConfirmations []ToolCall `json:"pending_confirmations"`
	TokensUsed           TokenUsage `json:"tokens_used"`
}

// ErrorEventData is the data for an error event.
type ErrorEventData struct {
	Message string `json:"message"`
}
