package llmadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opsrelay/opsrelay/engine/conversation"
	"github.com/opsrelay/opsrelay/pkg/logger"
	"github.com/tmc/langchaingo/llms"
)

// LangChainAdapter adapts a langchaingo model to the Client interface.
type LangChainAdapter struct {
	model llms.Model
}

// NewLangChainAdapter wraps an already-constructed langchaingo model.
func NewLangChainAdapter(model llms.Model) *LangChainAdapter {
	return &LangChainAdapter{model: model}
}

// GenerateContent implements Client.
func (a *LangChainAdapter) GenerateContent(ctx context.Context, req *Request) (*conversation.Message, error) {
	messages := convertMessages(req)
	options := buildCallOptions(req)

	response, err := a.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return nil, fmt.Errorf("completion service call failed: %w", err)
	}
	return convertResponse(ctx, response)
}

// Close implements Client. The langchaingo models hold no resources that
// need explicit teardown.
func (a *LangChainAdapter) Close() error {
	return nil
}

// convertMessages maps conversation messages to langchaingo message
// contents. User messages carrying tool_result blocks map to the tool
// role; the Anthropic transport re-encodes those as user-role tool_result
// blocks on the wire, preserving the conversation shape the service
// expects.
func convertMessages(req *Request) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for i := range req.Messages {
		out = append(out, convertMessage(&req.Messages[i]))
	}
	return out
}

func convertMessage(msg *conversation.Message) llms.MessageContent {
	role := llms.ChatMessageTypeHuman
	if msg.Role == conversation.RoleAssistant {
		role = llms.ChatMessageTypeAI
	}
	parts := make([]llms.ContentPart, 0, len(msg.Blocks))
	for _, b := range msg.Blocks {
		switch b.Kind {
		case conversation.KindText:
			parts = append(parts, llms.TextContent{Text: b.Text})
		case conversation.KindToolUse:
			args, err := json.Marshal(b.Input)
			if err != nil {
				args = []byte("{}")
			}
			parts = append(parts, llms.ToolCall{
				ID:   b.ToolUseID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      b.ToolName,
					Arguments: string(args),
				},
			})
		case conversation.KindToolResult:
			role = llms.ChatMessageTypeTool
			parts = append(parts, llms.ToolCallResponse{
				ToolCallID: b.ToolUseID,
				Content:    b.Result,
			})
		}
	}
	return llms.MessageContent{Role: role, Parts: parts}
}

func buildCallOptions(req *Request) []llms.CallOption {
	var options []llms.CallOption
	if req.Options.Temperature > 0 {
		options = append(options, llms.WithTemperature(req.Options.Temperature))
	}
	if req.Options.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(int(req.Options.MaxTokens)))
	}
	if len(req.Tools) > 0 {
		options = append(options, llms.WithTools(convertTools(req.Tools)))
		if req.Options.ToolChoice != "" {
			options = append(options, llms.WithToolChoice(req.Options.ToolChoice))
		}
	}
	return options
}

func convertTools(tools []ToolDefinition) []llms.Tool {
	out := make([]llms.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// convertResponse maps the langchaingo response back into an assistant
// message, text first, then tool_use blocks in the order emitted.
func convertResponse(ctx context.Context, resp *llms.ContentResponse) (*conversation.Message, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from completion service")
	}
	choice := resp.Choices[0]
	msg := &conversation.Message{Role: conversation.RoleAssistant}
	if choice.Content != "" {
		msg.Blocks = append(msg.Blocks, conversation.TextBlock(choice.Content))
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		var input map[string]any
		if raw := tc.FunctionCall.Arguments; raw != "" {
			if err := json.Unmarshal([]byte(raw), &input); err != nil {
				logger.FromContext(ctx).Warn("Tool call arguments are not a JSON object",
					"tool_name", tc.FunctionCall.Name, "error", err)
				input = map[string]any{}
			}
		}
		msg.Blocks = append(msg.Blocks,
			conversation.ToolUseBlock(tc.ID, tc.FunctionCall.Name, input))
	}
	return msg, nil
}
