package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/llm"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/pipedream"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

// StreamChat runs one agent turn and reports it through sink. Exactly one
// terminal event (done or error) is emitted, whatever happens. The returned
// error is for logging; the client has already been told.
func (s *Service) StreamChat(ctx context.Context, userID string, req domain.ChatRequest, sink EventSink) (err error) {
	out := &terminalSink{next: sink}
	outcome := "rejected"
	iterations := 0

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("agent turn panicked", "session_id", req.SessionID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("agent turn panicked: %v", r)
			outcome = "error"
		}
		if err != nil && !out.done() {
			_ = out.Emit(domain.EventError, domain.ErrorEventData{Message: streamErrorMessage(err)})
		}
		s.metrics.TurnFinished(outcome, iterations)
	}()

	if err := s.authorize(ctx, userID); err != nil {
		return err
	}
	message := strings.TrimSpace(req.Message)
	if req.SessionID == "" || message == "" {
		return ErrMissingFields
	}
	session, err := s.ownedSession(ctx, userID, req.SessionID)
	if err != nil {
		return err
	}

	outcome = "error"
	if timeout := s.config.InvocationTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := out.Emit(domain.EventStart, domain.StartEventData{SessionID: session.ID}); err != nil {
		return err
	}

	records, err := s.store.GetMessages(ctx, session.ID, s.historyLimit())
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	if len(records) == 0 && session.HasPlaceholderName() {
		if err := s.renameFromFirstMessage(ctx, session, message, out); err != nil {
			return err
		}
	}

	history := BuildHistory(records, message)

	userMsg := &domain.Message{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		UserID:    userID,
		Role:      domain.RoleUser,
		Content:   message,
		CreatedAt: s.stamp(),
	}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	s.logActivity(ctx, userID, session.ID, domain.ActivityMessageSent, "Message Sent", truncateRunes(message, 100), nil)

	toolset := s.source.Discover(ctx, userID, session.ID)
	descriptors := s.mergeDescriptors(toolset)

	prompt, err := BuildSystemPrompt(toolset.ConnectedApps, toolset.Tools, session.SystemPrompt)
	if err != nil {
		return err
	}
	history = append([]llm.ChatMessage{{Role: llm.RoleSystem, Content: prompt}}, history...)

	t := &turn{
		svc:         s,
		session:     session,
		userID:      userID,
		sink:        out,
		toolset:     toolset,
		model:       s.resolveModel(req.Config, session),
		temperature: s.resolveTemperature(req.Config),
		maxTokens:   s.resolveMaxTokens(req.Config),
		tools:       toLLMTools(descriptors),
		history:     history,
	}

	state, err := t.run(ctx)
	iterations = t.iterations
	// Tokens were spent even when the turn failed.
	s.settleTurn(context.WithoutCancel(ctx), t)
	if err != nil {
		return err
	}
	outcome = state.outcome()

	return out.Emit(domain.EventDone, domain.DoneEventData{
		Response:             t.response.String(),
		ToolCalls:            nonNil(t.toolCalls),
		PendingConfirmations: nonNil(t.pending),
		TokensUsed: domain.TokenUsage{
			Input:  t.usage.PromptTokens,
			Output: t.usage.CompletionTokens,
			Total:  t.usage.PromptTokens + t.usage.CompletionTokens,
		},
	})
}

func (s *Service) renameFromFirstMessage(ctx context.Context, session *domain.Session, message string, sink EventSink) error {
	name := GenerateSessionName(message)
	if err := s.store.RenameSession(ctx, session.ID, name); err != nil {
		s.logger.Warn("failed to rename session", "session_id", session.ID, "error", err)
		return nil
	}
	session.Name = name
	return sink.Emit(domain.EventSessionRenamed, domain.SessionRenamedEventData{Name: name})
}

// settleTurn writes the turn's totals to the ledger. Failures are logged
// and never change the outcome the client sees.
func (s *Service) settleTurn(ctx context.Context, t *turn) {
	total := t.usage.PromptTokens + t.usage.CompletionTokens
	if total > 0 {
		if err := s.store.AddSessionTokens(ctx, t.session.ID, total); err != nil {
			s.logger.Warn("failed to update session tokens", "session_id", t.session.ID, "error", err)
		}
	}
	if t.tasks > 0 {
		if err := s.store.IncrementSessionTasks(ctx, t.session.ID, t.tasks); err != nil {
			s.logger.Warn("failed to update session tasks", "session_id", t.session.ID, "error", err)
		}
	}
	s.incrementUsage(ctx, t.userID, domain.UsageDelta{
		TokensInput:   t.usage.PromptTokens,
		TokensOutput:  t.usage.CompletionTokens,
		ToolCalls:     len(t.toolCalls),
		TasksExecuted: t.tasks,
		CostCents:     EstimateCostCents(t.model, t.usage.PromptTokens, t.usage.CompletionTokens),
	})
}

// mergeDescriptors lists the built-in tools followed by the dynamic ones.
// A dynamic tool never shadows a built-in of the same name; it is dropped
// from the toolset as well, so calls to that name stay built-in.
func (s *Service) mergeDescriptors(toolset *pipedream.Toolset) []domain.ToolDescriptor {
	builtin := s.executor.Catalog().Descriptors()
	seen := make(map[string]bool, len(builtin)+len(toolset.Tools))
	merged := make([]domain.ToolDescriptor, 0, len(builtin)+len(toolset.Tools))
	for _, d := range builtin {
		seen[d.Name] = true
		merged = append(merged, d)
	}
	kept := toolset.Tools[:0]
	for _, d := range toolset.Tools {
		if seen[d.Name] {
			s.logger.Warn("dynamic tool shadows a built-in, skipping", "tool", d.Name)
			continue
		}
		seen[d.Name] = true
		merged = append(merged, d)
		kept = append(kept, d)
	}
	toolset.Tools = kept
	return merged
}

func toLLMTools(descriptors []domain.ToolDescriptor) []llm.Tool {
	out := make([]llm.Tool, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}

func (s *Service) resolveModel(cfg *domain.ModelConfig, session *domain.Session) string {
	if cfg != nil && cfg.Model != "" {
		return cfg.Model
	}
	if session.Model != "" {
		return session.Model
	}
	if s.config.DefaultModel != "" {
		return s.config.DefaultModel
	}
	return defaultModel
}

func (s *Service) resolveTemperature(cfg *domain.ModelConfig) float64 {
	if cfg != nil && cfg.Temperature != nil && *cfg.Temperature >= 0 {
		return *cfg.Temperature
	}
	if t := s.config.DefaultTemperature; t != nil && *t >= 0 {
		return *t
	}
	return defaultTemperature
}

func (s *Service) resolveMaxTokens(cfg *domain.ModelConfig) int {
	if cfg != nil && cfg.MaxTokens != nil && *cfg.MaxTokens > 0 {
		return *cfg.MaxTokens
	}
	if s.config.DefaultMaxTokens > 0 {
		return s.config.DefaultMaxTokens
	}
	return defaultMaxTokens
}

func streamErrorMessage(err error) string {
	if msg, ok := PublicMessage(err); ok {
		return msg
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The agent took too long to respond. Please try again."
	}
	return "Stream error"
}

func nonNil(calls []domain.ToolCall) []domain.ToolCall {
	if calls == nil {
		return []domain.ToolCall{}
	}
	return calls
}
