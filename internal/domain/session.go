package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultSessionName is the placeholder name given to new sessions.
const DefaultSessionName = "New Agent Session"

// Session represents a persistent agent conversation.
type Session struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"user_id"`
	WorkspaceID         string          `json:"workspace_id,omitempty"`
	Name                string          `json:"name"`
	Description         string          `json:"description,omitempty"`
	Status              SessionStatus   `json:"status"`
	Model               string          `json:"model"`
	SystemPrompt        string          `json:"system_prompt,omitempty"`
	TotalTokensUsed     int             `json:"total_tokens_used"`
	TotalTasksCompleted int             `json:"total_tasks_completed"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// HasPlaceholderName reports whether the session still carries an auto-assigned name.
func (s *Session) HasPlaceholderName() bool {
	return s.Name == "" || strings.Contains(s.Name, "New")
}

// Message represents a single transcript entry.
// ToolCalls holds the raw descriptors as stored; arguments may be a string or an object.
type Message struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	UserID     string          `json:"user_id"`
	Role       MessageRole     `json:"role"`
	Content    string          `json:"content"`
	ToolCalls  json.RawMessage `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	TokensUsed int             `json:"tokens_used,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// StoredToolCall is the persisted shape of one assistant tool call.
type StoredToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function StoredToolCallFn `json:"function"`
}

// StoredToolCallFn is the function part of a stored tool call.
type StoredToolCallFn struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
