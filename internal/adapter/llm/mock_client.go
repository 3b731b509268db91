package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockTurn scripts one model response.
type MockTurn struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
	Err       error
}

// MockClient is a mock implementation of LLMClient for testing and local runs.
// Scripted turns are replayed in order; once exhausted (or when none were
// given) it echoes the last user message.
type MockClient struct {
	mu       sync.Mutex
	script   []MockTurn
	repeat   bool
	requests []ChatCompletionRequest
}

// NewMockClient creates a new mock LLM client.
func NewMockClient(turns ...MockTurn) *MockClient {
	return &MockClient{script: turns}
}

// NewRepeatingMockClient replays the same turn forever.
func NewRepeatingMockClient(turn MockTurn) *MockClient {
	return &MockClient{script: []MockTurn{turn}, repeat: true}
}

// Calls returns how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns copies of the received requests.
func (m *MockClient) Requests() []ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatCompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockClient) next(req *ChatCompletionRequest) MockTurn {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := *req
	snapshot.Messages = append([]ChatMessage(nil), req.Messages...)
	m.requests = append(m.requests, snapshot)

	if len(m.script) == 0 {
		return m.echo(req)
	}
	turn := m.script[0]
	if !m.repeat {
		m.script = m.script[1:]
	}
	return turn
}

// CreateChatCompletionStream simulates a streaming response.
func (m *MockClient) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Usage, error) {
	turn := m.next(req)
	if turn.Err != nil {
		return nil, turn.Err
	}
	id := fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano())

	// Simulate streaming by sending content in chunks
	for _, piece := range splitIntoChunks(turn.Text, 10) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := callback(&StreamChunk{ID: id, Model: req.Model, Choices: []Choice{{
			Delta: Delta{Role: RoleAssistant, Content: piece},
		}}}); err != nil {
			return nil, err
		}
	}

	// Tool calls arrive as a name fragment followed by split argument fragments.
	for i, tc := range turn.ToolCalls {
		if err := callback(&StreamChunk{ID: id, Model: req.Model, Choices: []Choice{{
			Delta: Delta{ToolCalls: []ToolCallDelta{{Index: i, ID: tc.ID, Name: tc.Function.Name}}},
		}}}); err != nil {
			return nil, err
		}
		for _, frag := range splitIntoChunks(tc.Function.Arguments, 8) {
			if err := callback(&StreamChunk{ID: id, Model: req.Model, Choices: []Choice{{
				Delta: Delta{ToolCalls: []ToolCallDelta{{Index: i, Arguments: frag}}},
			}}}); err != nil {
				return nil, err
			}
		}
	}

	finish := FinishReasonStop
	if len(turn.ToolCalls) > 0 {
		finish = FinishReasonToolCalls
	}
	if err := callback(&StreamChunk{ID: id, Model: req.Model, Choices: []Choice{{FinishReason: finish}}}); err != nil {
		return nil, err
	}

	usage := turn.Usage
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return &usage, nil
}

// echo generates a mock reply based on the last user message.
func (m *MockClient) echo(req *ChatCompletionRequest) MockTurn {
	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	text := "[MOCK] This is a mock response from the LLM client."
	if lastUserMessage != "" {
		text = fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
	}

	prompt := 0
	for _, msg := range req.Messages {
		prompt += len(msg.Content) / 4
	}
	return MockTurn{
		Text:  text,
		Usage: Usage{PromptTokens: prompt, CompletionTokens: len(text) / 4},
	}
}

// splitIntoChunks splits a string into chunks of approximately the given size.
func splitIntoChunks(s string, chunkSize int) []string {
	if len(s) == 0 {
		return nil
	}

	var chunks []string
	for i := 0; i < len(s); i += chunkSize {
		end := i + chunkSize
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[i:end])
	}
	return chunks
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
