package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/llm"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/pipedream"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/tools"
)

const confirmationNeededText = "I need your confirmation before proceeding."

type loopState int

const (
	stateStreamingResponse loopState = iota
	stateHandlingToolCalls
	stateAwaitingConfirmation
	stateIterationLimit
	stateTerminal
)

func (s loopState) outcome() string {
	switch s {
	case stateAwaitingConfirmation:
		return "awaiting_confirmation"
	case stateIterationLimit:
		return "iteration_limit"
	default:
		return "completed"
	}
}

// turn holds the mutable state of one agent invocation.
type turn struct {
	svc     *Service
	session *domain.Session
	userID  string
	sink    EventSink
	toolset *pipedream.Toolset

	model       string
	temperature float64
	maxTokens   int
	tools       []llm.Tool
	history     []llm.ChatMessage

	response   strings.Builder
	toolCalls  []domain.ToolCall
	pending    []domain.ToolCall
	usage      llm.Usage
	iterations int
	tasks      int
}

// plannedCall is one model-requested call on its way to a result.
type plannedCall struct {
	call     llm.ToolCall
	args     json.RawMessage
	dynamic  bool
	confirm  bool
	result   json.RawMessage
	duration time.Duration
	executed bool
}

// run drives the loop until it reaches a terminal state.
func (t *turn) run(ctx context.Context) (loopState, error) {
	state := stateStreamingResponse
	var reducer *StreamReducer

	for {
		switch state {
		case stateStreamingResponse:
			if t.iterations >= t.svc.maxIterations() {
				t.annotateIterationLimit(ctx)
				return stateIterationLimit, nil
			}
			t.iterations++
			var err error
			if reducer, err = t.stream(ctx); err != nil {
				return state, err
			}
			if reducer.WantsTools() {
				state = stateHandlingToolCalls
				continue
			}
			t.finishWithText(ctx, reducer.Content())
			state = stateTerminal

		case stateHandlingToolCalls:
			awaiting, err := t.handleToolCalls(ctx, reducer)
			if err != nil {
				return state, err
			}
			if awaiting {
				if t.response.Len() == 0 {
					t.response.WriteString(confirmationNeededText)
				}
				state = stateAwaitingConfirmation
			} else {
				state = stateStreamingResponse
			}

		default:
			return state, nil
		}
	}
}

// stream submits the history and forwards text deltas as they arrive.
func (t *turn) stream(ctx context.Context) (*StreamReducer, error) {
	temperature, maxTokens := t.temperature, t.maxTokens
	req := &llm.ChatCompletionRequest{
		Model:       t.model,
		Messages:    t.history,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
	if len(t.tools) > 0 {
		req.Tools = t.tools
		req.ToolChoice = llm.ToolChoiceAuto
	}

	reducer := NewStreamReducer()
	start := time.Now()
	usage, err := t.svc.llm.CreateChatCompletionStream(ctx, req, func(chunk *llm.StreamChunk) error {
		text := reducer.Apply(chunk)
		if text == "" {
			return nil
		}
		t.response.WriteString(text)
		return t.sink.Emit(domain.EventToken, domain.TokenEventData{Content: text})
	})
	t.usage.Add(usage)

	var in, out int
	if usage != nil {
		in, out = usage.PromptTokens, usage.CompletionTokens
	}
	t.svc.metrics.ModelCall(t.model, time.Since(start), in, out, err)

	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	return reducer, nil
}

func (t *turn) finishWithText(ctx context.Context, text string) {
	t.history = append(t.history, llm.ChatMessage{Role: llm.RoleAssistant, Content: text})
	t.persist(ctx, &domain.Message{
		Role:       domain.RoleAssistant,
		Content:    text,
		TokensUsed: t.usage.PromptTokens + t.usage.CompletionTokens,
	})
}

func (t *turn) annotateIterationLimit(ctx context.Context) {
	note := fmt.Sprintf("[Stopped after %d rounds of tool use. Reply \"continue\" if you want me to keep going.]", t.svc.maxIterations())
	if t.response.Len() > 0 {
		t.response.WriteString("\n\n")
	}
	t.response.WriteString(note)
	t.persist(ctx, &domain.Message{Role: domain.RoleAssistant, Content: note})
	t.svc.logger.Warn("agent turn hit the iteration limit", "session_id", t.session.ID, "iterations", t.iterations)
}

// handleToolCalls settles every call of one model response in emission
// order. It reports whether any call is waiting for the user.
func (t *turn) handleToolCalls(ctx context.Context, reducer *StreamReducer) (bool, error) {
	calls := reducer.ToolCalls()
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.New().String()
		}
	}

	content := reducer.Content()
	t.history = append(t.history, llm.ChatMessage{Role: llm.RoleAssistant, Content: content, ToolCalls: calls})
	t.persist(ctx, &domain.Message{
		Role:      domain.RoleAssistant,
		Content:   content,
		ToolCalls: encodeToolCalls(calls),
	})

	planned := make([]*plannedCall, len(calls))
	for i, c := range calls {
		dynamic := t.toolset.Has(c.Function.Name)
		planned[i] = &plannedCall{
			call:    c,
			args:    normalizeArguments(c.Function.Arguments),
			dynamic: dynamic,
			confirm: t.svc.gate.RequiresConfirmation(ctx, c.Function.Name, dynamic),
		}
	}

	parallel := t.svc.config.ParallelTools && len(planned) > 1
	if parallel {
		for _, p := range planned {
			if err := t.emitToolStart(p); err != nil {
				return false, err
			}
		}
		if err := t.executeConcurrently(ctx, planned); err != nil {
			return false, err
		}
	}

	awaiting := false
	for _, p := range planned {
		if !parallel {
			if err := t.emitToolStart(p); err != nil {
				return false, err
			}
		}
		if p.confirm {
			awaiting = true
			if err := t.park(ctx, p); err != nil {
				return false, err
			}
			continue
		}
		if !p.executed {
			t.execute(ctx, p)
		}
		if err := t.complete(ctx, p); err != nil {
			return false, err
		}
	}
	return awaiting, nil
}

func (t *turn) emitToolStart(p *plannedCall) error {
	return t.sink.Emit(domain.EventToolStart, domain.ToolStartEventData{
		ID:                   p.call.ID,
		Name:                 p.call.Function.Name,
		Arguments:            p.args,
		RequiresConfirmation: p.confirm,
		IsMCP:                p.dynamic,
	})
}

// executeConcurrently runs the calls that need no confirmation at once and
// waits for all of them.
func (t *turn) executeConcurrently(ctx context.Context, planned []*plannedCall) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range planned {
		if p.confirm {
			continue
		}
		g.Go(func() error {
			t.execute(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (t *turn) execute(ctx context.Context, p *plannedCall) {
	if timeout := t.svc.config.ToolTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if p.dynamic {
		p.result = t.toolset.Invoke(ctx, p.call.Function.Name, p.args)
	} else {
		p.result = t.svc.executor.Execute(tools.WithWorkspace(ctx, t.session.WorkspaceID), p.call.Function.Name, p.args)
	}
	p.duration = time.Since(start)
	p.executed = true
}

// complete feeds an executed call's result back into the conversation.
func (t *turn) complete(ctx context.Context, p *plannedCall) error {
	name := p.call.Function.Name
	failed := tools.IsErrorResult(p.result)

	t.history = append(t.history, llm.ChatMessage{Role: llm.RoleTool, Content: string(p.result), ToolCallID: p.call.ID})
	t.persist(ctx, &domain.Message{Role: domain.RoleTool, Content: string(p.result), ToolCallID: p.call.ID})

	status := domain.ToolStatusCompleted
	if failed {
		status = domain.ToolStatusFailed
	} else {
		t.tasks++
	}
	completedAt := t.svc.now().UTC()
	t.svc.recordExecution(ctx, &domain.ToolExecution{
		SessionID:       t.session.ID,
		UserID:          t.userID,
		ToolCallID:      p.call.ID,
		ToolName:        name,
		ToolInput:       p.args,
		ToolOutput:      p.result,
		Status:          status,
		ErrorMessage:    resultError(p.result, failed),
		ExecutionTimeMs: p.duration.Milliseconds(),
		IsMCP:           p.dynamic,
		CompletedAt:     &completedAt,
	})
	t.svc.metrics.ToolExecuted(name, p.dynamic, string(status), p.duration)

	if failed {
		t.svc.logActivity(ctx, t.userID, t.session.ID, domain.ActivityToolFailed, "Tool Failed: "+name,
			resultError(p.result, true), map[string]any{"tool_call_id": p.call.ID, "is_mcp": p.dynamic})
	} else {
		t.svc.logActivity(ctx, t.userID, t.session.ID, domain.ActivityToolCompleted, "Tool Completed: "+name,
			fmt.Sprintf("Executed %s in %dms", name, p.duration.Milliseconds()),
			map[string]any{"tool_call_id": p.call.ID, "is_mcp": p.dynamic})
	}

	t.toolCalls = append(t.toolCalls, domain.ToolCall{
		ID:                   p.call.ID,
		Name:                 name,
		Arguments:            p.args,
		Status:               domain.ToolStatusCompleted,
		RequiresConfirmation: false,
		IsMCP:                p.dynamic,
		Result:               p.result,
	})
	return t.sink.Emit(domain.EventToolComplete, domain.ToolCompleteEventData{
		ID:     p.call.ID,
		Name:   name,
		Result: p.result,
	})
}

// park parks a call behind a placeholder result until the user decides.
func (t *turn) park(ctx context.Context, p *plannedCall) error {
	name := p.call.Function.Name
	placeholder := pendingPlaceholder(name, p.dynamic)

	t.history = append(t.history, llm.ChatMessage{Role: llm.RoleTool, Content: string(placeholder), ToolCallID: p.call.ID})
	t.persist(ctx, &domain.Message{Role: domain.RoleTool, Content: string(placeholder), ToolCallID: p.call.ID})

	t.svc.recordExecution(ctx, &domain.ToolExecution{
		SessionID:  t.session.ID,
		UserID:     t.userID,
		ToolCallID: p.call.ID,
		ToolName:   name,
		ToolInput:  p.args,
		Status:     domain.ToolStatusPending,
		IsMCP:      p.dynamic,
	})
	t.svc.metrics.ToolExecuted(name, p.dynamic, string(domain.ToolStatusPending), 0)
	t.svc.logActivity(ctx, t.userID, t.session.ID, domain.ActivityToolCalled, "Awaiting Confirmation: "+name,
		fmt.Sprintf("Action %q is waiting for user confirmation", name),
		map[string]any{"tool_call_id": p.call.ID, "is_mcp": p.dynamic})

	record := domain.ToolCall{
		ID:                   p.call.ID,
		Name:                 name,
		Arguments:            p.args,
		Status:               domain.ToolStatusPending,
		RequiresConfirmation: true,
		IsMCP:                p.dynamic,
	}
	t.toolCalls = append(t.toolCalls, record)
	t.pending = append(t.pending, record)

	return t.sink.Emit(domain.EventToolPending, domain.ToolPendingEventData{ID: p.call.ID, Name: name})
}

// persist appends a message to the transcript. Failures are logged; the
// history builder tolerates the resulting gaps.
func (t *turn) persist(ctx context.Context, msg *domain.Message) {
	msg.ID = uuid.New().String()
	msg.SessionID = t.session.ID
	msg.UserID = t.userID
	msg.CreatedAt = t.svc.stamp()
	if err := t.svc.store.CreateMessage(ctx, msg); err != nil {
		t.svc.logger.Warn("failed to persist message", "session_id", t.session.ID, "role", msg.Role, "error", err)
	}
}

func (s *Service) recordExecution(ctx context.Context, exec *domain.ToolExecution) {
	exec.ID = uuid.New().String()
	exec.CreatedAt = s.now().UTC()
	if err := s.store.CreateToolExecution(ctx, exec); err != nil {
		s.logger.Warn("failed to record tool execution", "session_id", exec.SessionID, "tool", exec.ToolName, "error", err)
	}
}

func pendingPlaceholder(name string, dynamic bool) json.RawMessage {
	out, _ := json.Marshal(map[string]any{
		"status":  "pending_confirmation",
		"message": fmt.Sprintf("Action %q requires user confirmation.", name),
		"isMCP":   dynamic,
	})
	return out
}

// normalizeArguments returns the call arguments as a JSON object, or {}
// when they are empty or do not parse as one.
func normalizeArguments(raw string) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(raw)
}

// resultError extracts the message of an error result.
func resultError(result json.RawMessage, failed bool) string {
	if !failed {
		return ""
	}
	var probe struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(result, &probe)
	if probe.Error != "" {
		return probe.Error
	}
	if probe.Message != "" {
		return probe.Message
	}
	return "tool returned an error"
}
