package domain

import "encoding/json"

// ModelConfig overrides model settings for a single turn.
type ModelConfig struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// ChatRequest is the body of a streaming chat turn.
type ChatRequest struct {
	SessionID string       `json:"session_id"`
	Message   string       `json:"message"`
	Config    *ModelConfig `json:"config,omitempty"`
}

// ConfirmAction is the user's decision on a pending tool call.
type ConfirmAction string

const (
	ConfirmActionConfirm ConfirmAction = "confirm"
	ConfirmActionCancel  ConfirmAction = "cancel"
)

// ConfirmRequest resolves a pending tool call.
type ConfirmRequest struct {
	SessionID  string        `json:"session_id"`
	ToolCallID string        `json:"tool_call_id"`
	Action     ConfirmAction `json:"action"`
}

// ConfirmResponse is the outcome of a confirmation decision.
type ConfirmResponse struct {
	Success bool            `json:"success"`
	Status  ToolStatus      `json:"status"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// CreateSessionRequest is the body for creating a session.
type CreateSessionRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
	WorkspaceID  string `json:"workspace_id"`
}

// UpdateSessionRequest is a partial session update; nil fields are left unchanged.
type UpdateSessionRequest struct {
	Name         *string        `json:"name,omitempty"`
	Description  *string        `json:"description,omitempty"`
	Status       *SessionStatus `json:"status,omitempty"`
	Model        *string        `json:"model,omitempty"`
	SystemPrompt *string        `json:"system_prompt,omitempty"`
}

// SessionFilter narrows a session listing.
type SessionFilter struct {
	Status SessionStatus
	Limit  int
}
