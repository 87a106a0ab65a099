package nats

import "time"

// FetchTimeout is the default timeout for batch fetching messages from
// consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "SOLACE_EVENTS"
)

// Subject constants.
const (
	SubjectUsageEvent = "solace.events.usage"
)

// EventTypeMessageSent is the event recorded for every completed response.
const EventTypeMessageSent = "chat_message_sent"

// UsageEvent is published after an assistant response finishes streaming and
// is consumed by the analytics sink off the request path.
type UsageEvent struct {
	UserID           string    `json:"user_id"`
	ChatID           string    `json:"chat_id"`
	ChatType         string    `json:"chat_type"` // text or voice
	EventType        string    `json:"event_type"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Timestamp        time.Time `json:"timestamp"`
}
