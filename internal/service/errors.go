package service

import "errors"

// Rejections raised before any work is done.
var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrNoAgentAccess       = errors.New("no agent access")
	ErrMissingFields       = errors.New("missing required fields")
	ErrMissingConfirmation = errors.New("missing confirmation fields")
	ErrSessionNotFound     = errors.New("session not found")
	ErrToolCallNotFound    = errors.New("tool call not found")
	ErrInvalidAction       = errors.New("invalid action")
	ErrInvalidSessionState = errors.New("invalid session status")
	ErrMissingTaskFields   = errors.New("missing task fields")
	ErrMissingTaskID       = errors.New("missing task id")
	ErrTaskNotFound        = errors.New("task not found")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
)

var publicMessages = map[error]string{
	ErrNotAuthenticated:    "Not authenticated",
	ErrNoAgentAccess:       "Agent feature requires Premium or Business subscription",
	ErrMissingFields:       "session_id and message are required",
	ErrMissingConfirmation: "session_id, tool_call_id, and action are required",
	ErrSessionNotFound:     "Session not found",
	ErrToolCallNotFound:    "No pending action found",
	ErrInvalidAction:       "Invalid action",
	ErrInvalidSessionState: "Invalid session status",
	ErrMissingTaskFields:   "session_id and title are required",
	ErrMissingTaskID:       "task_id is required",
	ErrTaskNotFound:        "Task not found",
	ErrInvalidTaskStatus:   "Invalid task status",
}

// PublicMessage returns the text shown to the client for a known error.
func PublicMessage(err error) (string, bool) {
	for target, msg := range publicMessages {
		if errors.Is(err, target) {
			return msg, true
		}
	}
	return "", false
}
