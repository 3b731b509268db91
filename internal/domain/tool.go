package domain

import (
	"encoding/json"
	"time"
)

// ToolDescriptor describes a callable tool offered to the model.
type ToolDescriptor struct {
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	Category             string          `json:"category,omitempty"`
	Parameters           json.RawMessage `json:"parameters"`
	RequiresConfirmation bool            `json:"requiresConfirmation"`
	Dynamic              bool            `json:"isMCP"`
}

// ToolCall is a tool invocation requested by the model during one turn.
type ToolCall struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Arguments            json.RawMessage `json:"arguments"`
	Status               ToolStatus      `json:"status"`
	RequiresConfirmation bool            `json:"requiresConfirmation"`
	IsMCP                bool            `json:"isMCP"`
	Result               json.RawMessage `json:"result,omitempty"`
}

// ToolExecution is the ledger record of a tool call.
type ToolExecution struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	UserID          string          `json:"user_id"`
	ToolCallID      string          `json:"tool_call_id"`
	ToolName        string          `json:"tool_name"`
	ToolInput       json.RawMessage `json:"tool_input"`
	ToolOutput      json.RawMessage `json:"tool_output,omitempty"`
	Status          ToolStatus      `json:"status"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	ExecutionTimeMs int64           `json:"execution_time_ms,omitempty"`
	IsMCP           bool            `json:"is_mcp"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}
