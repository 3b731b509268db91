package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

const (
	defaultSweepInterval = time.Minute
	sweepBatchSize       = 100
)

// RunConfirmationExpiry cancels pending tool calls that have waited longer
// than the confirmation TTL. It blocks until ctx is done.
func (s *Service) RunConfirmationExpiry(ctx context.Context, interval time.Duration) {
	if s.config.ConfirmationTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireConfirmations(ctx)
		}
	}
}

// ExpireConfirmations cancels every pending tool call older than the
// confirmation TTL and returns how many it settled.
func (s *Service) ExpireConfirmations(ctx context.Context) int {
	if s.config.ConfirmationTTL <= 0 {
		return 0
	}
	sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cutoff := s.now().Add(-s.config.ConfirmationTTL)
	expired, err := s.store.ListExpiredToolExecutions(sweepCtx, cutoff, sweepBatchSize)
	if err != nil {
		s.logger.Warn("confirmation expiry sweep failed", "error", err)
		return 0
	}

	n := 0
	for i := range expired {
		exec := &expired[i]
		exec.Status = domain.ToolStatusCancelled
		exec.ToolOutput = json.RawMessage(expiredResult)
		exec.ErrorMessage = "confirmation expired"

		settled, err := s.store.CompleteToolExecution(sweepCtx, exec)
		if err != nil {
			s.logger.Warn("failed to expire tool call", "tool_call_id", exec.ToolCallID, "error", err)
			continue
		}
		if !settled {
			continue
		}
		n++
		s.replacePlaceholder(sweepCtx, exec.SessionID, exec.ToolCallID, expiredResult)
		s.logActivity(sweepCtx, exec.UserID, exec.SessionID, domain.ActivityTaskCancelled, "Action Expired",
			"Pending action expired without confirmation: "+exec.ToolName,
			map[string]any{"tool_call_id": exec.ToolCallID})
	}
	if n > 0 {
		s.logger.Info("expired pending confirmations", "count", n)
	}
	return n
}
