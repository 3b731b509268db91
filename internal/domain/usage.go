package domain

import (
	"encoding/json"
	"time"
)

// UsageCounter is the per-user, per-month usage aggregate.
type UsageCounter struct {
	UserID             string `json:"user_id"`
	Month              string `json:"month"`
	TotalTokensInput   int    `json:"total_tokens_input"`
	TotalTokensOutput  int    `json:"total_tokens_output"`
	TotalToolCalls     int    `json:"total_tool_calls"`
	TotalTasksExecuted int    `json:"total_tasks_executed"`
	TotalSessions      int    `json:"total_sessions"`
	EstimatedCostCents int    `json:"estimated_cost_cents"`
}

// UsageDelta is an additive increment applied to a UsageCounter.
type UsageDelta struct {
	TokensInput   int
	TokensOutput  int
	ToolCalls     int
	TasksExecuted int
	Sessions      int
	CostCents     int
}

// ActivityEntry is a row in the user-facing activity feed.
type ActivityEntry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	SessionID   string          `json:"session_id,omitempty"`
	ActionType  ActivityAction  `json:"action_type"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Subscription is the billing record consulted for entitlements.
type Subscription struct {
	UserID    string    `json:"user_id"`
	Tier      string    `json:"tier"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AgentLimits are the monthly allowances of a tier.
type AgentLimits struct {
	MaxTokensPerMonth   int `json:"maxTokensPerMonth"`
	MaxSessionsPerMonth int `json:"maxSessionsPerMonth"`
	MaxTasksPerMonth    int `json:"maxTasksPerMonth"`
}
