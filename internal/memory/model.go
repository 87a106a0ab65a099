// Package memory is the client side of the external long-term memory service.
// The service ranks and stores durable facts about a user; its retrieval
// algorithm is opaque to this backend. The service is documented as
// occasionally slow or unavailable, so every call through this package is
// bounded by a timeout and degrades to empty results.
package memory

import (
	"slices"
	"time"
)

// Record is a single stored memory as returned by the service. Read-only.
type Record struct {
	ID         string     `json:"id"`
	Memory     string     `json:"memory"`
	Categories []string   `json:"categories"`
	CreatedAt  *time.Time `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

// Message is a conversation turn submitted to the service when extracting new
// facts.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CategoryConversationPreferences tags facts describing how the user wants
// the assistant to behave. Preference records are injected into the persona
// prompt rather than the memory recall block.
const CategoryConversationPreferences = "conversation_preferences"

// CustomCategories is the category taxonomy submitted with every fact
// extraction call.
var CustomCategories = []map[string]string{
	{CategoryConversationPreferences: "The user's preferences for how the AI should respond."},
}

// AddInstruction is an additional fact-extraction rule submitted with every
// add call. Extracted preference facts must name the assistant explicitly or
// they will not be categorized as conversation preferences; the wording is
// load-bearing and must not be edited.
const AddInstruction = "The user's preferences for how the AI should respond. These facts must mention the assistant explicitly; for example, say 'User prefers the assistant to respond with emojis', not 'User prefers responses with emojis'."

// WithCategory returns the records tagged with the given category.
func WithCategory(records []Record, category string) []Record {
	var out []Record
	for _, r := range records {
		if slices.Contains(r.Categories, category) {
			out = append(out, r)
		}
	}
	return out
}

// WithoutCategory returns the records not tagged with the given category.
func WithoutCategory(records []Record, category string) []Record {
	var out []Record
	for _, r := range records {
		if !slices.Contains(r.Categories, category) {
			out = append(out, r)
		}
	}
	return out
}
