package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicClientAdaptsToolUseStream(t *testing.T) {
	var body map[string]any
	events := [][2]string{
		{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Checking"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather_forecast","input":{}}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"location\":"}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"Dallas\"}"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":1}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":20}}`},
		{"message_stop", `{"type":"message_stop"}`},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, ev := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev[0], ev[1])
		}
	}))
	defer srv.Close()

	client := NewAnthropicClient(srv.URL+"/", "test-key")
	rec := newChunkRecorder()
	usage, err := client.CreateChatCompletionStream(context.Background(), &ChatCompletionRequest{
		Model: "claude-sonnet-4-5",
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "You are a roofing assistant."},
			{Role: RoleUser, Content: "weather in Dallas?"},
		},
		Tools: []Tool{{Type: "function", Function: ToolFunction{
			Name:        "get_weather_forecast",
			Description: "Weather",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"}},"required":["location"]}`),
		}}},
	}, rec.callback)
	require.NoError(t, err)

	assert.Equal(t, "Checking", rec.text.String())
	assert.Equal(t, "toolu_1", rec.ids[0])
	assert.Equal(t, "get_weather_forecast", rec.names[0])
	assert.Equal(t, `{"location":"Dallas"}`, rec.args[0].String())
	assert.Equal(t, FinishReasonToolCalls, rec.finish)
	assert.Equal(t, &Usage{PromptTokens: 12, CompletionTokens: 20, TotalTokens: 32}, usage)

	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, float64(4096), body["max_tokens"])
}

func TestToAnthropicMessagesGroupsToolResults(t *testing.T) {
	system, msgs := toAnthropicMessages([]ChatMessage{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "do two things"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "a", Function: ToolCallFunction{Name: "web_search", Arguments: `{"query":"x"}`}},
			{ID: "b", Function: ToolCallFunction{Name: "web_search", Arguments: `not json`}},
		}},
		{Role: RoleTool, ToolCallID: "a", Content: `{"status":"success"}`},
		{Role: RoleTool, ToolCallID: "b", Content: `{"status":"success"}`},
		{Role: RoleAssistant, Content: "done"},
	})

	assert.Equal(t, "sys", system)
	require.Len(t, msgs, 4)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Len(t, msgs[1].Content, 2)
	assert.Equal(t, "user", string(msgs[2].Role))
	assert.Len(t, msgs[2].Content, 2)
	assert.Equal(t, "assistant", string(msgs[3].Role))
}

func TestFinishReasonFromStop(t *testing.T) {
	assert.Equal(t, FinishReasonToolCalls, finishReasonFromStop("tool_use"))
	assert.Equal(t, FinishReasonLength, finishReasonFromStop("max_tokens"))
	assert.Equal(t, FinishReasonStop, finishReasonFromStop("end_turn"))
	assert.Equal(t, "", finishReasonFromStop(""))
}
