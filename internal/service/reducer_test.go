package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/llm"
)

func chunk(delta llm.Delta, finish string) *llm.StreamChunk {
	return &llm.StreamChunk{Choices: []llm.Choice{{Delta: delta, FinishReason: finish}}}
}

func TestStreamReducerText(t *testing.T) {
	r := NewStreamReducer()

	assert.Equal(t, "Hel", r.Apply(chunk(llm.Delta{Content: "Hel"}, "")))
	assert.Equal(t, "lo", r.Apply(chunk(llm.Delta{Content: "lo"}, "")))
	assert.Equal(t, "", r.Apply(chunk(llm.Delta{}, llm.FinishReasonStop)))
	assert.Equal(t, "", r.Apply(&llm.StreamChunk{}))
	assert.Equal(t, "", r.Apply(nil))

	assert.Equal(t, "Hello", r.Content())
	assert.Equal(t, llm.FinishReasonStop, r.FinishReason())
	assert.False(t, r.WantsTools())
}

func TestStreamReducerInterleavedToolCalls(t *testing.T) {
	r := NewStreamReducer()

	r.Apply(chunk(llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 1, ID: "call_b", Name: "web_"}}}, ""))
	r.Apply(chunk(llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 0, ID: "call_a", Name: "get_weather_forecast"}}}, ""))
	r.Apply(chunk(llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 1, Name: "search", Arguments: `{"query":`}}}, ""))
	r.Apply(chunk(llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 0, Arguments: `{"location":"Memphis"}`}}}, ""))
	r.Apply(chunk(llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 1, Arguments: `"shingles"}`}}}, ""))
	r.Apply(chunk(llm.Delta{}, llm.FinishReasonToolCalls))

	calls := r.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, toolCall("call_a", "get_weather_forecast", `{"location":"Memphis"}`), calls[0])
	assert.Equal(t, toolCall("call_b", "web_search", `{"query":"shingles"}`), calls[1])
	assert.True(t, r.WantsTools())
}

func TestStreamReducerNormalizesCalls(t *testing.T) {
	r := NewStreamReducer()

	r.Apply(chunk(llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 0, ID: "call_1", Name: "check_calendar"}}}, ""))
	r.Apply(chunk(llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 1, ID: "call_2", Arguments: "{}"}}}, ""))
	r.Apply(chunk(llm.Delta{}, llm.FinishReasonToolCalls))

	calls := r.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "{}", calls[0].Function.Arguments)
}

func TestStreamReducerIgnoresCallsWithoutToolFinish(t *testing.T) {
	r := NewStreamReducer()

	r.Apply(chunk(llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 0, ID: "call_1", Name: "check_calendar"}}}, ""))
	r.Apply(chunk(llm.Delta{}, llm.FinishReasonLength))

	assert.False(t, r.WantsTools())
}
