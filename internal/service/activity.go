package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lithammer/shortuuid/v4"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

const defaultActivityLimit = 50

// logActivity appends to the user's activity feed. Failures are logged only.
func (s *Service) logActivity(ctx context.Context, userID, sessionID string, action domain.ActivityAction, title, description string, metadata map[string]any) {
	entry := &domain.ActivityEntry{
		ID:          shortuuid.New(),
		UserID:      userID,
		SessionID:   sessionID,
		ActionType:  action,
		Title:       title,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}
	if len(metadata) > 0 {
		entry.Metadata, _ = json.Marshal(metadata)
	}
	if err := s.store.CreateActivity(ctx, entry); err != nil {
		s.logger.Warn("failed to record activity", "user_id", userID, "session_id", sessionID, "action", action, "error", err)
	}
}

// ListActivity returns the user's activity feed, newest first, optionally
// narrowed to one session.
func (s *Service) ListActivity(ctx context.Context, userID, sessionID string, limit int) ([]domain.ActivityEntry, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	entries, err := s.store.ListActivity(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return entries, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
