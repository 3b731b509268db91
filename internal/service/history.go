package service

import (
	"bytes"
	"encoding/json"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/llm"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

const missingToolResult = `{"status":"error","error":"No result was recorded for this tool call"}`

// storedCall accepts arguments persisted either as a JSON string or as an object.
type storedCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// BuildHistory turns persisted transcript records into completion messages
// and appends the inbound user message. Malformed records are skipped. Tool
// results are only kept when an earlier assistant message announced their
// call id, and announced calls without a result get a placeholder, so every
// call id is answered exactly once.
func BuildHistory(records []domain.Message, message string) []llm.ChatMessage {
	history := make([]llm.ChatMessage, 0, len(records)+1)
	open := map[string]bool{}
	var openOrder []string

	closeOpen := func() {
		for _, id := range openOrder {
			if open[id] {
				history = append(history, llm.ChatMessage{Role: llm.RoleTool, Content: missingToolResult, ToolCallID: id})
				delete(open, id)
			}
		}
		openOrder = nil
	}

	for _, rec := range records {
		switch rec.Role {
		case domain.RoleTool:
			if rec.ToolCallID == "" || !open[rec.ToolCallID] {
				continue
			}
			delete(open, rec.ToolCallID)
			history = append(history, llm.ChatMessage{Role: llm.RoleTool, Content: rec.Content, ToolCallID: rec.ToolCallID})

		case domain.RoleAssistant:
			closeOpen()
			msg := llm.ChatMessage{Role: llm.RoleAssistant, Content: rec.Content}
			if hasToolCalls(rec.ToolCalls) {
				calls, ok := decodeToolCalls(rec.ToolCalls)
				if !ok {
					continue
				}
				msg.ToolCalls = calls
				for _, c := range calls {
					open[c.ID] = true
					openOrder = append(openOrder, c.ID)
				}
			}
			history = append(history, msg)

		case domain.RoleUser:
			closeOpen()
			history = append(history, llm.ChatMessage{Role: llm.RoleUser, Content: rec.Content})
		}
	}
	closeOpen()

	return append(history, llm.ChatMessage{Role: llm.RoleUser, Content: message})
}

func hasToolCalls(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte("[]"))
}

func decodeToolCalls(raw json.RawMessage) ([]llm.ToolCall, bool) {
	var stored []storedCall
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, false
	}
	calls := make([]llm.ToolCall, 0, len(stored))
	for _, sc := range stored {
		if sc.ID == "" || sc.Function.Name == "" {
			return nil, false
		}
		calls = append(calls, llm.ToolCall{
			ID:   sc.ID,
			Type: "function",
			Function: llm.ToolCallFunction{
				Name:      sc.Function.Name,
				Arguments: argumentString(sc.Function.Arguments),
			},
		})
	}
	return calls, true
}

// argumentString normalizes stored arguments to the string form the
// completion API expects.
func argumentString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "{}"
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			if s == "" {
				return "{}"
			}
			return s
		}
	}
	return string(trimmed)
}

// encodeToolCalls is the persisted form of an assistant message's calls.
func encodeToolCalls(calls []llm.ToolCall) json.RawMessage {
	stored := make([]domain.StoredToolCall, 0, len(calls))
	for _, c := range calls {
		stored = append(stored, domain.StoredToolCall{
			ID:   c.ID,
			Type: "function",
			Function: domain.StoredToolCallFn{
				Name:      c.Function.Name,
				Arguments: c.Function.Arguments,
			},
		})
	}
	raw, _ := json.Marshal(stored)
	return raw
}
