package tokens

import (
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordEncoding counts whitespace-separated words, which is deterministic and
// close enough to a real tokenizer for estimator arithmetic.
type wordEncoding struct{}

func (wordEncoding) Count(text string) int {
	return len(strings.Fields(text))
}

func TestEstimate_EmptySequenceIsReplyPrimer(t *testing.T) {
	count, err := Estimate(nil, wordEncoding{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEstimate_PerMessageOverhead(t *testing.T) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "hello there"},
	}
	count, err := Estimate(msgs, wordEncoding{})
	require.NoError(t, err)
	// 3 per message + 1 (role) + 2 (content) + 3 primer
	assert.Equal(t, 9, count)
}

func TestEstimate_NameAddsOneToken(t *testing.T) {
	base := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "hi"},
	}
	named := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "hi", Name: "sam"},
	}

	baseCount, err := Estimate(base, wordEncoding{})
	require.NoError(t, err)
	namedCount, err := Estimate(named, wordEncoding{})
	require.NoError(t, err)

	// name contributes its own tokens plus a fixed 1-token overhead
	assert.Equal(t, baseCount+2, namedCount)
}

func TestEstimate_InvalidShapes(t *testing.T) {
	tests := []struct {
		name string
		msg  openai.ChatCompletionMessage
	}{
		{
			name: "unknown role",
			msg:  openai.ChatCompletionMessage{Role: "narrator", Content: "hi"},
		},
		{
			name: "tool call id on user message",
			msg:  openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: "hi", ToolCallID: "call_1"},
		},
		{
			name: "name on tool message",
			msg:  openai.ChatCompletionMessage{Role: openai.ChatMessageRoleTool, Content: "hi", ToolCallID: "call_1", Name: "sam"},
		},
		{
			name: "multi-part content",
			msg: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "hi"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Estimate([]openai.ChatCompletionMessage{tt.msg}, wordEncoding{})
			assert.ErrorIs(t, err, ErrInvalidMessageShape)
		})
	}
}

func TestEstimate_ToolMessageCountsToolCallID(t *testing.T) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleTool, Content: "ok", ToolCallID: "call_1"},
	}
	count, err := Estimate(msgs, wordEncoding{})
	require.NoError(t, err)
	// 3 per message + 1 (role) + 1 (content) + 1 (tool_call_id) + 3 primer
	assert.Equal(t, 9, count)
}
