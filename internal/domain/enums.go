// Package domain defines the core domain models for the agent orchestrator.
package domain

// SessionStatus represents the status of an agent session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// Valid reports whether the status is one of the known session statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusPaused, SessionStatusCompleted, SessionStatusFailed:
		return true
	}
	return false
}

// MessageRole represents the author role of a transcript message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolStatus represents the status of a tool call or tool execution.
type ToolStatus string

const (
	ToolStatusPending   ToolStatus = "pending"
	ToolStatusRunning   ToolStatus = "running"
	ToolStatusCompleted ToolStatus = "completed"
	ToolStatusFailed    ToolStatus = "failed"
	ToolStatusCancelled ToolStatus = "cancelled"
)

// ActivityAction represents the type of an activity log entry.
type ActivityAction string

const (
	ActivitySessionCreated   ActivityAction = "session_created"
	ActivitySessionCompleted ActivityAction = "session_completed"
	ActivityMessageSent      ActivityAction = "message_sent"
	ActivityToolCalled       ActivityAction = "tool_called"
	ActivityToolCompleted    ActivityAction = "tool_completed"
	ActivityToolFailed       ActivityAction = "tool_failed"
	ActivityToolConfirmed    ActivityAction = "tool_confirmed"
	ActivityTaskCreated      ActivityAction = "task_created"
	ActivityTaskStarted      ActivityAction = "task_started"
	ActivityTaskCompleted    ActivityAction = "task_completed"
	ActivityTaskFailed       ActivityAction = "task_failed"
	ActivityTaskCancelled    ActivityAction = "task_cancelled"
	ActivityError            ActivityAction = "error"
)

// EventType represents the name of an event on the agent stream.
type EventType string

const (
	EventStart          EventType = "start"
	EventToken          EventType = "token"
	EventToolStart      EventType = "tool_start"
	EventToolPending    EventType = "tool_pending"
	EventToolComplete   EventType = "tool_complete"
	EventSessionRenamed EventType = "session_renamed"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// Terminal reports whether the event ends a stream.
func (e EventType) Terminal() bool {
	return e == EventDone || e == EventError
}

// Tier is a normalized subscription tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierPremium    Tier = "premium"
	TierBusiness   Tier = "business"
	TierAIEmployee Tier = "ai_employee"
)
