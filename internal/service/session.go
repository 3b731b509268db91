package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

const defaultMessageLimit = 100

// CreateSession starts a new agent session for the user.
func (s *Service) CreateSession(ctx context.Context, userID string, req domain.CreateSessionRequest) (*domain.Session, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		WorkspaceID:  req.WorkspaceID,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Status:       domain.SessionStatusActive,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
	}
	if session.Name == "" {
		session.Name = domain.DefaultSessionName
	}
	if session.Model == "" {
		session.Model = defaultModel
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logActivity(ctx, userID, session.ID, domain.ActivitySessionCreated, "Session Created",
		fmt.Sprintf("Started new agent session: %s", session.Name), nil)
	s.incrementUsage(ctx, userID, domain.UsageDelta{Sessions: 1})

	return session, nil
}

// GetSession returns one of the user's sessions.
func (s *Service) GetSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	return s.ownedSession(ctx, userID, sessionID)
}

func (s *Service) ownedSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	session, err := s.store.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ListSessions lists the user's sessions, most recently active first.
func (s *Service) ListSessions(ctx context.Context, userID string, filter domain.SessionFilter) ([]domain.Session, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidSessionState
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	sessions, err := s.store.ListSessions(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// UpdateSession applies a partial update.
func (s *Service) UpdateSession(ctx context.Context, userID, sessionID string, req domain.UpdateSessionRequest) (*domain.Session, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		session.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		session.Description = *req.Description
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, ErrInvalidSessionState
		}
		session.Status = *req.Status
	}
	if req.Model != nil && *req.Model != "" {
		session.Model = *req.Model
	}
	if req.SystemPrompt != nil {
		session.SystemPrompt = *req.SystemPrompt
	}

	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	if req.Status != nil && *req.Status == domain.SessionStatusCompleted {
		s.logActivity(ctx, userID, session.ID, domain.ActivitySessionCompleted, "Session Completed", session.Name, nil)
	}
	return session, nil
}

// DeleteSession removes a session and everything recorded under it.
func (s *Service) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if err := s.authorize(ctx, userID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteSession(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !deleted {
		return ErrSessionNotFound
	}
	if s.source != nil {
		s.source.Evict(userID, sessionID)
	}
	return nil
}

// ListMessages returns the most recent messages of a session in ascending order.
func (s *Service) ListMessages(ctx context.Context, userID, sessionID string, limit int) ([]domain.Message, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	messages, err := s.store.GetMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// ClearMessages deletes a session's transcript and returns how many messages went.
func (s *Service) ClearMessages(ctx context.Context, userID, sessionID string) (int64, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return 0, err
	}
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteMessages(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return n, nil
}
