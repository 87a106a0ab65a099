package analytics

import (
	"time"

	"github.com/google/uuid"

	inats "github.com/solace-ai/solace/internal/nats"
)

// UsageRecord is a persisted usage event with its cost estimate.
type UsageRecord struct {
	ID               uuid.UUID `json:"id"`
	UserID           string    `json:"user_id"`
	ChatID           string    `json:"chat_id"`
	ChatType         string    `json:"chat_type"`
	EventType        string    `json:"event_type"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	CreatedAt        time.Time `json:"created_at"`
}

func recordFromEvent(event inats.UsageEvent) *UsageRecord {
	return &UsageRecord{
		ID:               uuid.New(),
		UserID:           event.UserID,
		ChatID:           event.ChatID,
		ChatType:         event.ChatType,
		EventType:        event.EventType,
		Model:            event.Model,
		PromptTokens:     event.PromptTokens,
		CompletionTokens: event.CompletionTokens,
		CostUSD:          Cost(event.Model, event.PromptTokens, event.CompletionTokens),
		CreatedAt:        event.Timestamp,
	}
}
