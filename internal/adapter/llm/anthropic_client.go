package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicClient adapts the Anthropic Messages streaming API to the
// OpenAI-style chunk protocol used by the orchestration loop.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates a client. An empty baseURL targets api.anthropic.com.
func NewAnthropicClient(baseURL, apiKey string) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...)}
}

// CreateChatCompletionStream sends a streaming messages request.
func (c *AnthropicClient) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Usage, error) {
	system, messages := toAnthropicMessages(req.Messages)

	maxTokens := defaultAnthropicMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	usage := &Usage{}
	// content block index -> tool call position within this message
	toolIndex := make(map[int64]int)

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			usage.PromptTokens += int(event.AsMessageStart().Message.Usage.InputTokens)

		case "content_block_start":
			start := event.AsContentBlockStart()
			if start.ContentBlock.Type != "tool_use" {
				continue
			}
			toolUse := start.ContentBlock.AsToolUse()
			pos := len(toolIndex)
			toolIndex[start.Index] = pos
			if err := callback(&StreamChunk{Choices: []Choice{{Delta: Delta{
				ToolCalls: []ToolCallDelta{{Index: pos, ID: toolUse.ID, Name: toolUse.Name}},
			}}}}); err != nil {
				return usage, err
			}

		case "content_block_delta":
			blockDelta := event.AsContentBlockDelta()
			switch blockDelta.Delta.Type {
			case "text_delta":
				if blockDelta.Delta.Text == "" {
					continue
				}
				if err := callback(&StreamChunk{Choices: []Choice{{Delta: Delta{Content: blockDelta.Delta.Text}}}}); err != nil {
					return usage, err
				}
			case "input_json_delta":
				pos, ok := toolIndex[blockDelta.Index]
				if !ok || blockDelta.Delta.PartialJSON == "" {
					continue
				}
				if err := callback(&StreamChunk{Choices: []Choice{{Delta: Delta{
					ToolCalls: []ToolCallDelta{{Index: pos, Arguments: blockDelta.Delta.PartialJSON}},
				}}}}); err != nil {
					return usage, err
				}
			}

		case "message_delta":
			messageDelta := event.AsMessageDelta()
			// output_tokens is cumulative for the message
			usage.CompletionTokens = int(messageDelta.Usage.OutputTokens)
			if reason := finishReasonFromStop(string(messageDelta.Delta.StopReason)); reason != "" {
				if err := callback(&StreamChunk{Choices: []Choice{{FinishReason: reason}}}); err != nil {
					return usage, err
				}
			}
		}
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	if err := stream.Err(); err != nil {
		return usage, fmt.Errorf("anthropic stream failed: %w", err)
	}
	return usage, nil
}

func finishReasonFromStop(stop string) string {
	switch stop {
	case "":
		return ""
	case "tool_use":
		return FinishReasonToolCalls
	case "max_tokens":
		return FinishReasonLength
	default:
		return FinishReasonStop
	}
}

// toAnthropicMessages splits out the system prompt and folds tool results
// into user messages. Consecutive tool results share one user message.
func toAnthropicMessages(messages []ChatMessage) (string, []anthropic.MessageParam) {
	var system []string
	var result []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			result = append(result, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		case RoleAssistant:
			flush()
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := map[string]any{}
				if tc.Function.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			if len(content) > 0 {
				result = append(result, anthropic.NewAssistantMessage(content...))
			}
		default:
			flush()
			if msg.Content != "" {
				result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}
	flush()
	return strings.Join(system, "\n\n"), result
}

func toAnthropicTools(tools []Tool) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(t.Function.Parameters) > 0 {
			if err := json.Unmarshal(t.Function.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Function.Name, err)
			}
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Function.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", t.Function.Name)
		}
		if t.Function.Description != "" {
			param.OfTool.Description = anthropic.String(t.Function.Description)
		}
		result = append(result, param)
	}
	return result, nil
}
