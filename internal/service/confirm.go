package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/tools"
)

const (
	cancelledResult = `{"status":"cancelled","message":"User cancelled this action"}`
	expiredResult   = `{"status":"cancelled","message":"This action expired before it was confirmed"}`
)

// Confirm resolves a pending tool call: cancel discards it, confirm runs it
// and replaces the placeholder result in the transcript.
func (s *Service) Confirm(ctx context.Context, userID string, req domain.ConfirmRequest) (*domain.ConfirmResponse, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	if req.SessionID == "" || req.ToolCallID == "" || req.Action == "" {
		return nil, ErrMissingConfirmation
	}
	if req.Action != domain.ConfirmActionConfirm && req.Action != domain.ConfirmActionCancel {
		return nil, ErrInvalidAction
	}
	session, err := s.ownedSession(ctx, userID, req.SessionID)
	if err != nil {
		return nil, err
	}

	exec, err := s.store.GetToolExecution(ctx, session.ID, req.ToolCallID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tool execution: %w", err)
	}
	if exec == nil || exec.Status != domain.ToolStatusPending {
		return nil, ErrToolCallNotFound
	}

	if req.Action == domain.ConfirmActionCancel {
		return s.cancelPending(ctx, session, exec)
	}
	return s.runConfirmed(ctx, session, exec)
}

func (s *Service) cancelPending(ctx context.Context, session *domain.Session, exec *domain.ToolExecution) (*domain.ConfirmResponse, error) {
	exec.Status = domain.ToolStatusCancelled
	exec.ToolOutput = json.RawMessage(cancelledResult)
	settled, err := s.store.CompleteToolExecution(ctx, exec)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel tool execution: %w", err)
	}
	if !settled {
		return nil, ErrToolCallNotFound
	}
	s.replacePlaceholder(ctx, session.ID, exec.ToolCallID, cancelledResult)
	s.logActivity(ctx, exec.UserID, session.ID, domain.ActivityTaskCancelled, "Action Cancelled",
		"User cancelled the pending action: "+exec.ToolName, map[string]any{"tool_call_id": exec.ToolCallID})

	return &domain.ConfirmResponse{
		Success: true,
		Status:  domain.ToolStatusCancelled,
		Message: "Action cancelled",
	}, nil
}

func (s *Service) runConfirmed(ctx context.Context, session *domain.Session, exec *domain.ToolExecution) (*domain.ConfirmResponse, error) {
	claimed, err := s.store.ClaimToolExecution(ctx, exec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim tool execution: %w", err)
	}
	if !claimed {
		return nil, ErrToolCallNotFound
	}

	if timeout := s.config.ToolTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	var result json.RawMessage
	if exec.IsMCP {
		result = s.source.Invoke(ctx, exec.UserID, session.ID, exec.ToolName, exec.ToolInput)
	} else {
		result = s.executor.Execute(tools.WithWorkspace(ctx, session.WorkspaceID), exec.ToolName, exec.ToolInput)
	}
	elapsed := time.Since(start)

	// The result must land even if the caller has gone away by now.
	ledgerCtx := context.WithoutCancel(ctx)

	failed := tools.IsErrorResult(result)
	exec.Status = domain.ToolStatusCompleted
	if failed {
		exec.Status = domain.ToolStatusFailed
	}
	exec.ToolOutput = result
	exec.ErrorMessage = resultError(result, failed)
	exec.ExecutionTimeMs = elapsed.Milliseconds()

	settled, err := s.store.CompleteToolExecution(ledgerCtx, exec)
	if err != nil {
		return nil, fmt.Errorf("failed to complete tool execution: %w", err)
	}
	if !settled {
		return nil, ErrToolCallNotFound
	}
	s.metrics.ToolExecuted(exec.ToolName, exec.IsMCP, string(exec.Status), elapsed)
	s.replacePlaceholder(ledgerCtx, session.ID, exec.ToolCallID, string(result))

	delta := domain.UsageDelta{ToolCalls: 1}
	if !failed {
		delta.TasksExecuted = 1
		if err := s.store.IncrementSessionTasks(ledgerCtx, session.ID, 1); err != nil {
			s.logger.Warn("failed to update session tasks", "session_id", session.ID, "error", err)
		}
	}
	s.incrementUsage(ledgerCtx, exec.UserID, delta)
	s.logActivity(ledgerCtx, exec.UserID, session.ID, domain.ActivityToolConfirmed, "Confirmed: "+exec.ToolName,
		"User confirmed and executed action: "+exec.ToolName,
		map[string]any{"tool_call_id": exec.ToolCallID, "is_mcp": exec.IsMCP, "status": exec.Status})

	resp := &domain.ConfirmResponse{
		Success: true,
		Status:  exec.Status,
		Result:  result,
		Message: "Action confirmed and executed successfully",
	}
	if failed {
		resp.Message = exec.ErrorMessage
	}
	return resp, nil
}

func (s *Service) replacePlaceholder(ctx context.Context, sessionID, toolCallID, content string) {
	updated, err := s.store.UpdateToolMessage(ctx, sessionID, toolCallID, content)
	if err != nil {
		s.logger.Warn("failed to update tool message", "session_id", sessionID, "tool_call_id", toolCallID, "error", err)
		return
	}
	if !updated {
		s.logger.Warn("no tool message to update", "session_id", sessionID, "tool_call_id", toolCallID)
	}
}
