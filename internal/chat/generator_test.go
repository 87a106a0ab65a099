package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solace-ai/solace/internal/background"
	"github.com/solace-ai/solace/internal/memory"
)

// wordEncoding counts whitespace-separated words, standing in for a real
// tokenizer.
type wordEncoding struct{}

func (wordEncoding) Count(text string) int {
	return len(strings.Fields(text))
}

type fakeMemory struct {
	mu sync.Mutex

	searchResults []memory.Record
	getAllResults []memory.Record
	delay         time.Duration
	err           error

	addedMessages [][]memory.Message
	addedIncludes []string
}

func (f *fakeMemory) wait(ctx context.Context) error {
	if f.delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeMemory) Search(ctx context.Context, query string, topK int, userID string, rerank bool) ([]memory.Record, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.searchResults, f.err
}

func (f *fakeMemory) GetAll(ctx context.Context, userID string) ([]memory.Record, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.getAllResults, f.err
}

func (f *fakeMemory) Add(ctx context.Context, messages []memory.Message, userID, includes string, customCategories []map[string]string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addedMessages = append(f.addedMessages, messages)
	f.addedIncludes = append(f.addedIncludes, includes)
	return f.err
}

type fakeStream struct {
	chunks []Chunk
	pos    int
}

func (f *fakeStream) Recv() (Chunk, error) {
	if f.pos >= len(f.chunks) {
		return Chunk{}, io.EOF
	}
	c := f.chunks[f.pos]
	f.pos++
	return c, nil
}

func (f *fakeStream) Close() error { return nil }

type erroringStream struct {
	chunks []Chunk
	pos    int
	err    error
}

func (f *erroringStream) Recv() (Chunk, error) {
	if f.pos >= len(f.chunks) {
		return Chunk{}, f.err
	}
	c := f.chunks[f.pos]
	f.pos++
	return c, nil
}

func (f *erroringStream) Close() error { return nil }

type fakeStreamer struct {
	mu       sync.Mutex
	stream   CompletionStream
	err      error
	received []openai.ChatCompletionMessage
}

func (f *fakeStreamer) StreamCompletion(ctx context.Context, messages []openai.ChatCompletionMessage, model string) (CompletionStream, error) {
	f.mu.Lock()
	f.received = messages
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type fakeStore struct {
	mu    sync.Mutex
	turns []Turn
	err   error
}

func (f *fakeStore) AppendTurn(ctx context.Context, turn Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
	return f.err
}

type fakeTracker struct {
	mu     sync.Mutex
	events []trackedEvent
}

type trackedEvent struct {
	userID   string
	chatID   string
	chatType string
	usage    Usage
}

func (f *fakeTracker) TrackMessageSent(ctx context.Context, userID, chatID, chatType string, usage Usage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, trackedEvent{userID: userID, chatID: chatID, chatType: chatType, usage: usage})
	return nil
}

func responseChunks(fragments ...string) []Chunk {
	chunks := make([]Chunk, 0, len(fragments)+2)
	for _, f := range fragments {
		chunks = append(chunks, Chunk{Content: f})
	}
	chunks = append(chunks, Chunk{FinishReason: "stop"})
	chunks = append(chunks, Chunk{Usage: &Usage{PromptTokens: 100, CompletionTokens: 20}})
	return chunks
}

func testConfig() GeneratorConfig {
	return GeneratorConfig{
		Model:         "gpt-4o-mini-2024-07-18",
		TokenLimit:    125000,
		SearchTopK:    10,
		SearchTimeout: 50 * time.Millisecond,
		FetchTimeout:  50 * time.Millisecond,
		AddTimeout:    100 * time.Millisecond,
	}
}

func userMessages(contents ...string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(contents))
	for i, c := range contents {
		role := openai.ChatMessageRoleUser
		if i%2 == 1 {
			role = openai.ChatMessageRoleAssistant
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: c}
	}
	return out
}

func drain(t *testing.T, stream *Stream) string {
	t.Helper()
	var sb strings.Builder
	for f := range stream.Fragments() {
		sb.WriteString(f)
	}
	return sb.String()
}

func newTestGenerator(mem *fakeMemory, streamer *fakeStreamer, store *fakeStore, tracker *fakeTracker, runner *background.Runner) *Generator {
	return NewGenerator(mem, streamer, store, tracker, runner, wordEncoding{}, testConfig())
}

func TestGenerate_StreamsAndAccumulates(t *testing.T) {
	mem := &fakeMemory{}
	streamer := &fakeStreamer{stream: &fakeStream{chunks: responseChunks("Hello", " there", "!")}}
	store := &fakeStore{}
	tracker := &fakeTracker{}
	runner := background.New()

	gen := newTestGenerator(mem, streamer, store, tracker, runner)

	stream, err := gen.Generate(context.Background(), GenerateInput{
		Messages: userMessages("hi"),
		UserID:   "user-1",
		ChatID:   uuid.New(),
		ChatType: "text",
		Location: time.UTC,
	})
	require.NoError(t, err)

	got := drain(t, stream)
	assert.Equal(t, "Hello there!", got)
	assert.Equal(t, "Hello there!", stream.Response())
	assert.NoError(t, stream.Err())
}

func TestGenerate_MemoryServiceDownStillStreams(t *testing.T) {
	// Memory calls hang past their timeouts; the response must still arrive.
	mem := &fakeMemory{delay: time.Second}
	streamer := &fakeStreamer{stream: &fakeStream{chunks: responseChunks("still", " works")}}
	store := &fakeStore{}
	tracker := &fakeTracker{}
	runner := background.New()

	gen := newTestGenerator(mem, streamer, store, tracker, runner)

	start := time.Now()
	stream, err := gen.Generate(context.Background(), GenerateInput{
		Messages: userMessages("hi"),
		UserID:   "user-1",
		ChatID:   uuid.New(),
		ChatType: "text",
		Location: time.UTC,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.Equal(t, "still works", drain(t, stream))
}

func TestGenerate_ComposesSystemPrompts(t *testing.T) {
	mem := &fakeMemory{
		searchResults: []memory.Record{{Memory: "Enjoys hiking in the mountains"}},
		getAllResults: []memory.Record{{
			Memory:     "Prefers short answers",
			Categories: []string{memory.CategoryConversationPreferences},
		}},
	}
	streamer := &fakeStreamer{stream: &fakeStream{chunks: responseChunks("ok")}}
	store := &fakeStore{}
	tracker := &fakeTracker{}
	runner := background.New()

	gen := newTestGenerator(mem, streamer, store, tracker, runner)

	stream, err := gen.Generate(context.Background(), GenerateInput{
		Messages:      userMessages("hello", "hi!", "how are you"),
		UserID:        "user-1",
		ChatID:        uuid.New(),
		ChatType:      "text",
		AIFirstName:   "Ava",
		UserFirstName: "Sam",
		UserGender:    "female",
		Location:      time.UTC,
	})
	require.NoError(t, err)
	drain(t, stream)

	received := streamer.received
	require.NotEmpty(t, received)

	var persona, memories string
	for _, m := range received {
		if m.Role != openai.ChatMessageRoleSystem {
			continue
		}
		if strings.Contains(m.Content, "whose name is Ava") {
			persona = m.Content
		}
		if strings.Contains(m.Content, "<MEMORY>") {
			memories = m.Content
		}
	}

	require.NotEmpty(t, persona, "persona system prompt missing")
	assert.Contains(t, persona, "talking to Sam")
	assert.Contains(t, persona, "Prefers short answers")

	require.NotEmpty(t, memories, "memories system prompt missing")
	assert.Contains(t, memories, "Enjoys hiking in the mountains")
}

func TestGenerate_CapsMessageCount(t *testing.T) {
	mem := &fakeMemory{}
	streamer := &fakeStreamer{stream: &fakeStream{chunks: responseChunks("ok")}}
	store := &fakeStore{}
	tracker := &fakeTracker{}
	runner := background.New()

	gen := newTestGenerator(mem, streamer, store, tracker, runner)

	contents := make([]string, 3000)
	for i := range contents {
		contents[i] = "hey"
	}

	stream, err := gen.Generate(context.Background(), GenerateInput{
		Messages: userMessages(contents...),
		UserID:   "user-1",
		ChatID:   uuid.New(),
		ChatType: "text",
		Location: time.UTC,
	})
	require.NoError(t, err)
	drain(t, stream)

	assert.Len(t, streamer.received, maxMessageCount)
}

func TestGenerate_ModelCallErrorWrapped(t *testing.T) {
	mem := &fakeMemory{}
	streamer := &fakeStreamer{err: errors.New("upstream 500")}
	store := &fakeStore{}
	tracker := &fakeTracker{}
	runner := background.New()

	gen := newTestGenerator(mem, streamer, store, tracker, runner)

	_, err := gen.Generate(context.Background(), GenerateInput{
		Messages: userMessages("hi"),
		UserID:   "user-1",
		ChatID:   uuid.New(),
		ChatType: "text",
		Location: time.UTC,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelCall)
}

func TestGenerate_MidStreamErrorReported(t *testing.T) {
	mem := &fakeMemory{}
	streamer := &fakeStreamer{stream: &erroringStream{
		chunks: []Chunk{{Content: "partial"}},
		err:    errors.New("connection reset"),
	}}
	store := &fakeStore{}
	tracker := &fakeTracker{}
	runner := background.New()

	gen := newTestGenerator(mem, streamer, store, tracker, runner)

	stream, err := gen.Generate(context.Background(), GenerateInput{
		Messages: userMessages("hi"),
		UserID:   "user-1",
		ChatID:   uuid.New(),
		ChatType: "text",
		Location: time.UTC,
	})
	require.NoError(t, err)

	got := drain(t, stream)
	assert.Equal(t, "partial", got)
	assert.ErrorIs(t, stream.Err(), ErrModelCall)
}

func TestGenerate_FinalProcessingPersistsAndTracks(t *testing.T) {
	mem := &fakeMemory{}
	streamer := &fakeStreamer{stream: &fakeStream{chunks: responseChunks("Nice to meet you")}}
	store := &fakeStore{}
	tracker := &fakeTracker{}
	runner := background.New()

	gen := newTestGenerator(mem, streamer, store, tracker, runner)

	chatID := uuid.New()
	stream, err := gen.Generate(context.Background(), GenerateInput{
		Messages: userMessages("hello", "hey!", "I'm Sam"),
		UserID:   "user-1",
		ChatID:   chatID,
		ChatType: "text",
		Location: time.UTC,
	})
	require.NoError(t, err)
	drain(t, stream)
	runner.Wait()

	require.Len(t, store.turns, 1)
	turn := store.turns[0]
	assert.Equal(t, chatID, turn.ChatID)
	assert.Equal(t, "I'm Sam", turn.UserMessage)
	assert.Equal(t, "Nice to meet you", turn.AgentMessage)
	assert.Equal(t, -time.Second, turn.AgentTimestamp.Sub(turn.UserTimestamp))

	require.Len(t, tracker.events, 1)
	event := tracker.events[0]
	assert.Equal(t, "user-1", event.userID)
	assert.Equal(t, chatID.String(), event.chatID)
	assert.Equal(t, "text", event.chatType)
	assert.Equal(t, Usage{PromptTokens: 100, CompletionTokens: 20}, event.usage)

	// Memory extraction sees the conversation plus the new response, with
	// the fact-extraction instruction passed through.
	require.Len(t, mem.addedMessages, 1)
	added := mem.addedMessages[0]
	assert.Equal(t, "Nice to meet you", added[len(added)-1].Content)
	assert.Equal(t, memory.AddInstruction, mem.addedIncludes[0])
}

func TestGenerate_EmptyResponseStillPersistsTurn(t *testing.T) {
	// A content-filtered or zero-delta completion streams no text. The user's
	// message must still be written and the prompt tokens still accounted for.
	mem := &fakeMemory{}
	streamer := &fakeStreamer{stream: &fakeStream{chunks: []Chunk{
		{FinishReason: "content_filter"},
		{Usage: &Usage{PromptTokens: 100, CompletionTokens: 0}},
	}}}
	store := &fakeStore{}
	tracker := &fakeTracker{}
	runner := background.New()

	gen := newTestGenerator(mem, streamer, store, tracker, runner)

	chatID := uuid.New()
	stream, err := gen.Generate(context.Background(), GenerateInput{
		Messages: userMessages("hello", "hey!", "remember this please"),
		UserID:   "user-1",
		ChatID:   chatID,
		ChatType: "text",
		Location: time.UTC,
	})
	require.NoError(t, err)
	assert.Empty(t, drain(t, stream))
	runner.Wait()

	require.Len(t, store.turns, 1)
	turn := store.turns[0]
	assert.Equal(t, "remember this please", turn.UserMessage)
	assert.Empty(t, turn.AgentMessage)

	require.Len(t, tracker.events, 1)
	assert.Equal(t, Usage{PromptTokens: 100, CompletionTokens: 0}, tracker.events[0].usage)
}

func TestGenerate_GreetingHasNoUserMessage(t *testing.T) {
	mem := &fakeMemory{}
	streamer := &fakeStreamer{stream: &fakeStream{chunks: responseChunks("Hi Sam!")}}
	store := &fakeStore{}
	tracker := &fakeTracker{}
	runner := background.New()

	gen := newTestGenerator(mem, streamer, store, tracker, runner)

	stream, err := gen.Generate(context.Background(), GenerateInput{
		Messages: userMessages("say hi"),
		UserID:   "user-1",
		ChatID:   uuid.New(),
		ChatType: "text",
		Location: time.UTC,
	})
	require.NoError(t, err)
	drain(t, stream)
	runner.Wait()

	require.Len(t, store.turns, 1)
	assert.Empty(t, store.turns[0].UserMessage)
}

func TestGenerate_SkipFinalProcessing(t *testing.T) {
	mem := &fakeMemory{}
	streamer := &fakeStreamer{stream: &fakeStream{chunks: responseChunks("voice reply")}}
	store := &fakeStore{}
	tracker := &fakeTracker{}
	runner := background.New()

	gen := newTestGenerator(mem, streamer, store, tracker, runner)

	stream, err := gen.Generate(context.Background(), GenerateInput{
		Messages:            userMessages("hi"),
		UserID:              "user-1",
		ChatID:              uuid.New(),
		ChatType:            "voice",
		Location:            time.UTC,
		SkipFinalProcessing: true,
	})
	require.NoError(t, err)
	drain(t, stream)
	runner.Wait()

	assert.Empty(t, store.turns)
	assert.Empty(t, tracker.events)
	assert.Empty(t, mem.addedMessages)
}
