// Package llm adapts the OpenAI chat-completions API to the orchestrator's
// streaming interface.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/solace-ai/solace/internal/chat"
)

// Client is a streaming chat-completions client. Safe for concurrent use.
type Client struct {
	api *openai.Client
}

func NewClient(apiKey string) *Client {
	return &Client{api: openai.NewClient(apiKey)}
}

// StreamCompletion starts a streaming completion for the message sequence.
func (c *Client) StreamCompletion(ctx context.Context, messages []openai.ChatCompletionMessage, model string) (chat.CompletionStream, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:         model,
		Messages:      messages,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, fmt.Errorf("creating completion stream: %w", err)
	}
	return &completionStream{stream: stream}, nil
}

type completionStream struct {
	stream *openai.ChatCompletionStream
}

// Recv returns the next fragment, passing io.EOF through at end of stream.
func (s *completionStream) Recv() (chat.Chunk, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return chat.Chunk{}, err
	}

	var chunk chat.Chunk
	if resp.Usage != nil {
		chunk.Usage = &chat.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
	}
	if len(resp.Choices) > 0 {
		chunk.Content = resp.Choices[0].Delta.Content
		chunk.FinishReason = string(resp.Choices[0].FinishReason)
	}
	return chunk, nil
}

func (s *completionStream) Close() error {
	return s.stream.Close()
}
