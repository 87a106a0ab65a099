package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/solace-ai/solace/internal/chat"
	inats "github.com/solace-ai/solace/internal/nats"
)

// Tracker publishes usage events to JetStream. Implements chat.Tracker so
// tracking never blocks on the analytics database.
type Tracker struct {
	publisher *inats.Publisher
	model     string
}

// NewTracker creates a Tracker. The model name is stamped on every event so
// the sink can price it.
func NewTracker(publisher *inats.Publisher, model string) *Tracker {
	return &Tracker{publisher: publisher, model: model}
}

// TrackMessageSent publishes a chat_message_sent usage event.
func (t *Tracker) TrackMessageSent(ctx context.Context, userID, chatID, chatType string, usage chat.Usage) error {
	event := inats.UsageEvent{
		UserID:           userID,
		ChatID:           chatID,
		ChatType:         chatType,
		EventType:        inats.EventTypeMessageSent,
		Model:            t.model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Timestamp:        time.Now().UTC(),
	}
	if err := t.publisher.PublishUsageEvent(ctx, event); err != nil {
		return fmt.Errorf("publishing usage event: %w", err)
	}
	return nil
}
