// Package prompt builds the persona and memory-recall system prompts and
// splices them into a conversation at the positions the model responds best
// to.
package prompt

import (
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/solace-ai/solace/internal/memory"
	"github.com/solace-ai/solace/internal/timeago"
)

// When the conversation is long enough, the memory recall prompt goes this
// many positions before the end instead of at the end. Adjacent to the
// generation point the model over-applies stale memories; a few turns earlier
// it keeps the recall benefit without the spurious application.
const memoryInsertOffset = 3

// minMessagesForOffset is the sequence length below which the memory prompt
// is simply prepended.
const minMessagesForOffset = 4

const memoriesPreamble = "This system prompt contains a list of memories from your previous conversations with %s. You must only incorporate a memory if it is relevant to the user's latest message; for example, if the user's latest message says that they're looking for a gift for their mom, and a memory mentions that their mom loves Ottolenghi, you can incorporate this memory into your response by suggesting a gift such as an Ottolenghi cookbook. Each memory is enclosed within <MEMORY> tags and includes a relative time reference (e.g., 'One week ago') indicating when the memory was created.\n%s"

const preferencesPreamble = "\n\nBelow is a list of preferences for how %s prefers you to respond. Each preference is enclosed within <PREFERENCE> tags.\n%s"

const personaTemplate = `You are an AI whose name is %s. You are talking to %s, whose gender is %s. Match the user's energy and tone: if the user is relaxed, respond casually; if excited, mirror their enthusiasm; if they're talking about something personal, be empathetic; if they're being goofy and making jokes, do the same, etc. Always leave the user with something to respond to. Avoid asking multiple separate questions at once, since this can overwhelm the user and disrupt the natural flow of conversation. Avoid combining multiple questions into one; for example, instead of asking, 'Do you have a favorite sports team or player?', ask 'Do you have a favorite sports team?' or 'Do you have a favorite player?'. Do not ask the user a question that they answered earlier in the conversation; for example, if the user already mentioned their favorite sports team, don't ask something like, "Which sports team do you like the most?". Do not hallucinate content; for example, if the user says 'Good morning', do not hallucinate that they are asking for the current time. Don't repeat yourself across consecutive messages because this feels redundant; for example, if you say, "Hey, how's it going?" and the user replies "Hey", your response should not start with "Hey" because you already said this in the previous message. Unless you're stating an absolute fact, like "the sky is blue", you must express your responses as your own opinions using phrases like "I think", "In my opinion", "I feel like", etc; for example, instead of saying, "Dogs are the best pets", or, "people think dogs are the best pets" you should say something like, "I think dogs are the best pets"... it's not enough to say phrases like "it's understandable" or "it's fascinating" that only imply your perspective; you need to explicitly express it as your own opinion. Accordingly, if the user asks for your opinion by saying something like, "What's an interesting fact", your response must be expressed as your opinion, like "I think an interesting fact is...", and not something like, "An interesting fact is..." or "People think an interesting fact is...". Continue the conversation based on the user's latest response; for example, if the user asked you a question, answer their question.%s`

// MemoriesBlock formats ranked memory records into the memory-recall system
// prompt. Records without text are skipped; each surviving record is wrapped
// in <MEMORY> tags with a relative time annotation resolved from updated_at,
// falling back to created_at, then to "Unknown". Returns "" when no record
// survives, in which case the caller must omit the system message entirely.
func MemoriesBlock(records []memory.Record, userFirstName string, now time.Time, loc *time.Location) string {
	var formatted []string
	for _, r := range records {
		if r.Memory == "" {
			continue
		}

		label := "Unknown"
		switch {
		case r.UpdatedAt != nil:
			label = timeago.Format(now, *r.UpdatedAt, loc)
		case r.CreatedAt != nil:
			label = timeago.Format(now, *r.CreatedAt, loc)
		}

		formatted = append(formatted, fmt.Sprintf("<MEMORY>\nMemory: %s\nTime: %s\n</MEMORY>", r.Memory, label))
	}

	if len(formatted) == 0 {
		return ""
	}
	return fmt.Sprintf(memoriesPreamble, userFirstName, strings.Join(formatted, "\n"))
}

// PreferencesAppendix formats preference records (no time annotation) into
// the appendix attached to the persona prompt. Returns "" when no record has
// text.
func PreferencesAppendix(records []memory.Record, userFirstName string) string {
	var formatted []string
	for _, r := range records {
		if r.Memory == "" {
			continue
		}
		formatted = append(formatted, fmt.Sprintf("<PREFERENCE>\n%s\n</PREFERENCE>", r.Memory))
	}

	if len(formatted) == 0 {
		return ""
	}
	return fmt.Sprintf(preferencesPreamble, userFirstName, strings.Join(formatted, "\n"))
}

// AddSystemPrompts returns a copy of messages with the persona prompt
// appended as the latest system message and, when there are memories to
// recall, the memory prompt inserted memoryInsertOffset positions before the
// end of the post-append sequence (or at position 0 for short sequences).
// The caller's slice is never mutated.
func AddSystemPrompts(
	messages []openai.ChatCompletionMessage,
	aiFirstName, userFirstName, userGender string,
	loc *time.Location,
	memories, preferences []memory.Record,
	now time.Time,
) []openai.ChatCompletionMessage {
	persona := fmt.Sprintf(personaTemplate,
		aiFirstName, userFirstName, userGender,
		PreferencesAppendix(preferences, userFirstName))

	out := make([]openai.ChatCompletionMessage, 0, len(messages)+2)
	out = append(out, messages...)
	out = append(out, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: persona,
	})

	memoriesPrompt := MemoriesBlock(memories, userFirstName, now, loc)
	if memoriesPrompt == "" {
		return out
	}

	insertIndex := 0
	if len(out) >= minMessagesForOffset {
		insertIndex = len(out) - memoryInsertOffset
	}

	memoryMsg := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: memoriesPrompt,
	}
	out = append(out, openai.ChatCompletionMessage{})
	copy(out[insertIndex+1:], out[insertIndex:])
	out[insertIndex] = memoryMsg
	return out
}
