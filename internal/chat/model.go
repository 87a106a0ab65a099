package chat

import (
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// Chat is a conversation owned by a single user.
type Chat struct {
	ID              uuid.UUID `json:"id"`
	UserID          string    `json:"user_id"`
	LastMessageTime time.Time `json:"last_message_time"`
	CreatedAt       time.Time `json:"created_at"`
}

// StoredMessage is a persisted conversation turn.
type StoredMessage struct {
	ID          uuid.UUID `json:"id"`
	ChatID      uuid.UUID `json:"chat_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Created     time.Time `json:"created"`
	DisplayType string    `json:"display_type"`
}

// ClientMessage is a conversation turn as sent by the client app.
type ClientMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
	Created string `json:"created"`
}

// Request is the body of POST /api/chat.
type Request struct {
	Messages []ClientMessage `json:"messages" validate:"required,min=1,dive"`
	ChatID   string          `json:"chat_id" validate:"required,uuid"`
	Timezone string          `json:"timezone" validate:"required"`
}

// UpdateRequest is the body of the internal POST /api/updateChat call that
// persists a completed turn.
type UpdateRequest struct {
	NewUserMessage        string  `json:"new_user_message"`
	UserMessageTimestamp  float64 `json:"user_message_timestamp"`
	NewAgentMessage       string  `json:"new_agent_message" validate:"required"`
	AgentMessageTimestamp float64 `json:"agent_message_timestamp"`
	ChatID                string  `json:"chat_id" validate:"required,uuid"`
}

// ToCompletionMessages converts client messages into the model's message
// schema, preserving conversation order.
func ToCompletionMessages(messages []ClientMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// LastUserMessage returns the content of the most recent user turn, or ""
// when there is none (the assistant greeting a brand-new conversation).
func LastUserMessage(messages []openai.ChatCompletionMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == openai.ChatMessageRoleUser {
			return messages[i].Content
		}
	}
	return ""
}
