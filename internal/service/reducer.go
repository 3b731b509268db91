package service

import (
	"sort"
	"strings"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/llm"
)

// StreamReducer folds the chunks of one model response into text, tool
// calls and a finish reason.
type StreamReducer struct {
	content      strings.Builder
	calls        map[int]*llm.ToolCall
	finishReason string
}

// NewStreamReducer returns an empty reducer.
func NewStreamReducer() *StreamReducer {
	return &StreamReducer{calls: make(map[int]*llm.ToolCall)}
}

// Apply folds one chunk and returns the text it contributed.
func (r *StreamReducer) Apply(chunk *llm.StreamChunk) string {
	if chunk == nil || len(chunk.Choices) == 0 {
		return ""
	}
	choice := chunk.Choices[0]
	r.content.WriteString(choice.Delta.Content)

	for _, d := range choice.Delta.ToolCalls {
		call, ok := r.calls[d.Index]
		if !ok {
			call = &llm.ToolCall{Type: "function"}
			r.calls[d.Index] = call
		}
		if d.ID != "" {
			call.ID = d.ID
		}
		call.Function.Name += d.Name
		call.Function.Arguments += d.Arguments
	}

	if choice.FinishReason != "" {
		r.finishReason = choice.FinishReason
	}
	return choice.Delta.Content
}

// Content returns the accumulated text.
func (r *StreamReducer) Content() string {
	return r.content.String()
}

// FinishReason returns the last finish reason seen.
func (r *StreamReducer) FinishReason() string {
	return r.finishReason
}

// ToolCalls returns the accumulated calls ordered by stream index. Calls
// without a name are dropped and empty arguments become "{}".
func (r *StreamReducer) ToolCalls() []llm.ToolCall {
	indexes := make([]int, 0, len(r.calls))
	for i := range r.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]llm.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		c := *r.calls[i]
		if c.Function.Name == "" {
			continue
		}
		if strings.TrimSpace(c.Function.Arguments) == "" {
			c.Function.Arguments = "{}"
		}
		calls = append(calls, c)
	}
	return calls
}

// WantsTools reports whether the response ended asking for tool calls.
func (r *StreamReducer) WantsTools() bool {
	return r.finishReason == llm.FinishReasonToolCalls && len(r.ToolCalls()) > 0
}
