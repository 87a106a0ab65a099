// Package tokens estimates the token cost of chat message sequences and
// truncates them to a model's context window.
package tokens

import (
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrInvalidMessageShape indicates a message carrying fields outside the
// recognized set for its role. Such fields would either be dropped by the
// model API or silently undercounted here, so they are rejected up front.
var ErrInvalidMessageShape = errors.New("invalid message shape")

// Token accounting constants from the OpenAI cookbook
// (https://cookbook.openai.com/examples/how_to_count_tokens_with_tiktoken).
const (
	tokensPerMessage = 3
	tokensPerName    = 1
	// Every reply is primed with <|start|>assistant<|message|>.
	replyPrimerTokens = 3
)

// Estimate returns the estimated token count for submitting messages to a
// chat-completions model. It is a pure function of its inputs.
func Estimate(messages []openai.ChatCompletionMessage, enc Encoding) (int, error) {
	for i := range messages {
		if err := validateShape(&messages[i]); err != nil {
			return 0, fmt.Errorf("message %d: %w", i, err)
		}
	}

	count := 0
	for i := range messages {
		m := &messages[i]
		count += tokensPerMessage
		count += enc.Count(m.Role)
		count += enc.Count(m.Content)
		if m.Name != "" {
			count += enc.Count(m.Name)
			count += tokensPerName
		}
		if m.ToolCallID != "" {
			count += enc.Count(m.ToolCallID)
		}
	}

	count += replyPrimerTokens
	return count, nil
}

// validateShape rejects messages whose populated fields fall outside the
// recognized set for their role. Non-string payloads (tool calls, multi-part
// content) are not counted by Estimate, so letting them through would produce
// a silent undercount.
func validateShape(m *openai.ChatCompletionMessage) error {
	if len(m.MultiContent) > 0 {
		return fmt.Errorf("%w: multi-part content is not supported", ErrInvalidMessageShape)
	}

	switch m.Role {
	case openai.ChatMessageRoleSystem, openai.ChatMessageRoleUser:
		if m.ToolCallID != "" || len(m.ToolCalls) > 0 || m.FunctionCall != nil {
			return fmt.Errorf("%w: tool fields on %s message", ErrInvalidMessageShape, m.Role)
		}
	case openai.ChatMessageRoleAssistant:
		if m.ToolCallID != "" {
			return fmt.Errorf("%w: tool_call_id on assistant message", ErrInvalidMessageShape)
		}
		if len(m.ToolCalls) > 0 || m.FunctionCall != nil {
			return fmt.Errorf("%w: tool calls are not supported", ErrInvalidMessageShape)
		}
	case openai.ChatMessageRoleTool:
		if m.Name != "" {
			return fmt.Errorf("%w: name on tool message", ErrInvalidMessageShape)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMessageShape, m.Role)
	}
	return nil
}
