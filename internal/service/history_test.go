package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/llm"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

func TestBuildHistoryRoundTrip(t *testing.T) {
	calls := []llm.ToolCall{toolCall("call_1", "get_weather_forecast", `{"location":"Memphis, TN"}`)}
	records := []domain.Message{
		{Role: domain.RoleUser, Content: "Weather in Memphis?"},
		{Role: domain.RoleAssistant, ToolCalls: encodeToolCalls(calls)},
		{Role: domain.RoleTool, ToolCallID: "call_1", Content: `{"status":"success"}`},
		{Role: domain.RoleAssistant, Content: "Sunny all week."},
	}

	history := BuildHistory(records, "Thanks!")

	require.Len(t, history, 5)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, calls, history[1].ToolCalls)
	assert.Equal(t, llm.ChatMessage{Role: llm.RoleTool, ToolCallID: "call_1", Content: `{"status":"success"}`}, history[2])
	assert.Equal(t, "Sunny all week.", history[3].Content)
	assert.Equal(t, llm.ChatMessage{Role: llm.RoleUser, Content: "Thanks!"}, history[4])
}

func TestBuildHistoryAcceptsObjectArguments(t *testing.T) {
	records := []domain.Message{
		{Role: domain.RoleAssistant, ToolCalls: json.RawMessage(`[{"id":"call_1","type":"function","function":{"name":"web_search","arguments":{"query":"gaf timberline"}}}]`)},
		{Role: domain.RoleTool, ToolCallID: "call_1", Content: `{"status":"success"}`},
		{Role: domain.RoleAssistant, ToolCalls: json.RawMessage(`[{"id":"call_2","type":"function","function":{"name":"web_search","arguments":""}}]`)},
		{Role: domain.RoleTool, ToolCallID: "call_2", Content: `{"status":"success"}`},
	}

	history := BuildHistory(records, "next")

	require.Len(t, history, 5)
	assert.JSONEq(t, `{"query":"gaf timberline"}`, history[0].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "{}", history[2].ToolCalls[0].Function.Arguments)
}

func TestBuildHistorySkipsMalformedRecords(t *testing.T) {
	records := []domain.Message{
		{Role: domain.RoleSystem, Content: "old prompt"},
		{Role: "narrator", Content: "???"},
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, ToolCalls: json.RawMessage(`{not json`)},
		{Role: domain.RoleTool, ToolCallID: "call_ghost", Content: `{"status":"success"}`},
		{Role: domain.RoleTool, Content: `{"status":"success"}`},
		{Role: domain.RoleAssistant, Content: "Hi!"},
	}

	history := BuildHistory(records, "again")

	require.Len(t, history, 3)
	assert.Equal(t, []string{llm.RoleUser, llm.RoleAssistant, llm.RoleUser},
		[]string{history[0].Role, history[1].Role, history[2].Role})
}

func TestBuildHistoryAnswersOrphanedCalls(t *testing.T) {
	calls := []llm.ToolCall{
		toolCall("call_a", "web_search", `{"query":"a"}`),
		toolCall("call_b", "web_search", `{"query":"b"}`),
	}
	records := []domain.Message{
		{Role: domain.RoleUser, Content: "search twice"},
		{Role: domain.RoleAssistant, ToolCalls: encodeToolCalls(calls)},
		{Role: domain.RoleTool, ToolCallID: "call_a", Content: `{"status":"success"}`},
		{Role: domain.RoleUser, Content: "never mind"},
	}

	history := BuildHistory(records, "hello?")

	require.Len(t, history, 6)
	assert.Equal(t, "call_a", history[2].ToolCallID)
	assert.Equal(t, llm.RoleTool, history[3].Role)
	assert.Equal(t, "call_b", history[3].ToolCallID)
	assert.Equal(t, missingToolResult, history[3].Content)
	assert.Equal(t, "never mind", history[4].Content)
}

func TestBuildHistoryAnswersTrailingCalls(t *testing.T) {
	records := []domain.Message{
		{Role: domain.RoleAssistant, ToolCalls: encodeToolCalls([]llm.ToolCall{toolCall("call_x", "check_calendar", `{}`)})},
	}

	history := BuildHistory(records, "hi")

	require.Len(t, history, 3)
	assert.Equal(t, "call_x", history[1].ToolCallID)
	assert.Equal(t, "hi", history[2].Content)
}

func TestBuildHistoryDropsDuplicateResults(t *testing.T) {
	records := []domain.Message{
		{Role: domain.RoleAssistant, ToolCalls: encodeToolCalls([]llm.ToolCall{toolCall("call_1", "check_calendar", `{}`)})},
		{Role: domain.RoleTool, ToolCallID: "call_1", Content: "first"},
		{Role: domain.RoleTool, ToolCallID: "call_1", Content: "second"},
	}

	history := BuildHistory(records, "hi")

	require.Len(t, history, 3)
	assert.Equal(t, "first", history[1].Content)
}
