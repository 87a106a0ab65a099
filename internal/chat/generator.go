package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/solace-ai/solace/internal/background"
	"github.com/solace-ai/solace/internal/memory"
	"github.com/solace-ai/solace/internal/metrics"
	"github.com/solace-ai/solace/internal/prompt"
	"github.com/solace-ai/solace/internal/tokens"
)

// ErrModelCall indicates the completion model call failed. Not recoverable
// here; retry policy, if any, belongs to the caller.
var ErrModelCall = errors.New("completion model call failed")

// Some model APIs reject message arrays beyond a fixed element count
// regardless of token size, so the windowed sequence is additionally capped.
const maxMessageCount = 2048

// searchContextTokens bounds how much trailing conversation feeds the memory
// search query and the fact-extraction call. At least the last 4 messages are
// always included; more are added until this many tokens of context are
// captured so short turns still give the search enough signal.
const searchContextTokens = 150

const minSearchMessages = 4

// MemoryStore is the ranked long-term memory service.
type MemoryStore interface {
	Search(ctx context.Context, query string, topK int, userID string, rerank bool) ([]memory.Record, error)
	GetAll(ctx context.Context, userID string) ([]memory.Record, error)
	Add(ctx context.Context, messages []memory.Message, userID, includes string, customCategories []map[string]string) error
}

// CompletionStreamer is the chat-completions model in streaming mode.
type CompletionStreamer interface {
	StreamCompletion(ctx context.Context, messages []openai.ChatCompletionMessage, model string) (CompletionStream, error)
}

// CompletionStream yields incremental response fragments. Recv returns
// io.EOF after the final chunk.
type CompletionStream interface {
	Recv() (Chunk, error)
	Close() error
}

// Chunk is one incremental fragment of a streamed response. Usage, when
// non-nil, carries the token counts the model reports on its final chunk.
type Chunk struct {
	Content      string
	FinishReason string
	Usage        *Usage
}

// Usage is the token accounting for one completed generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Turn is a completed user/assistant exchange to persist.
type Turn struct {
	ChatID         uuid.UUID
	UserMessage    string
	UserTimestamp  time.Time
	AgentMessage   string
	AgentTimestamp time.Time
}

// Store persists completed turns.
type Store interface {
	AppendTurn(ctx context.Context, turn Turn) error
}

// Tracker records usage analytics.
type Tracker interface {
	TrackMessageSent(ctx context.Context, userID, chatID, chatType string, usage Usage) error
}

// GeneratorConfig carries the model and timeout knobs for response
// generation.
type GeneratorConfig struct {
	Model         string
	TokenLimit    int
	SearchTopK    int
	SearchTimeout time.Duration
	FetchTimeout  time.Duration
	AddTimeout    time.Duration
}

// Generator coordinates memory retrieval, prompt composition, windowing, and
// the streaming model call for a single request. All collaborators are
// injected so tests can substitute deterministic doubles. Safe for concurrent
// use; per-request state lives in the Stream.
type Generator struct {
	memory  MemoryStore
	llm     CompletionStreamer
	store   Store
	tracker Tracker
	runner  *background.Runner
	enc     tokens.Encoding
	cfg     GeneratorConfig
}

func NewGenerator(
	mem MemoryStore,
	llm CompletionStreamer,
	store Store,
	tracker Tracker,
	runner *background.Runner,
	enc tokens.Encoding,
	cfg GeneratorConfig,
) *Generator {
	return &Generator{
		memory:  mem,
		llm:     llm,
		store:   store,
		tracker: tracker,
		runner:  runner,
		enc:     enc,
		cfg:     cfg,
	}
}

// GenerateInput is everything a single generation request needs.
type GenerateInput struct {
	Messages      []openai.ChatCompletionMessage
	UserID        string
	ChatID        uuid.UUID
	ChatType      string
	AIFirstName   string
	UserFirstName string
	UserGender    string
	Location      *time.Location

	// SkipFinalProcessing suppresses persistence, memory writes, and
	// analytics. The voice path sets this and triggers final processing
	// itself once audio synthesis is done.
	SkipFinalProcessing bool
}

// Stream delivers response fragments as the model produces them. Fragments
// is unbuffered: the consumer's pace is the stream's pace. After Fragments
// is closed, Err reports how the stream ended and Response holds the full
// accumulated text.
type Stream struct {
	fragments chan string

	mu       sync.Mutex
	err      error
	response strings.Builder
}

// Fragments returns the channel of incremental response fragments.
func (s *Stream) Fragments() <-chan string {
	return s.fragments
}

// Err reports a mid-stream failure. Valid once Fragments is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Response returns the accumulated response text. Valid once Fragments is
// closed.
func (s *Stream) Response() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response.String()
}

// Generate runs the pipeline: concurrent memory search and preference fetch
// (both timeout-bounded and optional), prompt composition, token windowing,
// then the streaming model call. The returned Stream must be drained.
//
// The memory subsystem is never a single point of failure here: on timeout
// or error the request proceeds with empty memories and a generic response.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (*Stream, error) {
	in.AIFirstName = strings.TrimSpace(in.AIFirstName)
	in.UserFirstName = strings.TrimSpace(in.UserFirstName)
	in.UserGender = strings.TrimSpace(in.UserGender)

	recent, err := g.recentTurns(in.Messages)
	if err != nil {
		return nil, err
	}
	query := searchQuery(recent)

	// Memory search and preference fetch have no data dependency, so they
	// run concurrently. Each degrades to empty results on its own.
	var (
		wg       sync.WaitGroup
		relevant []memory.Record
		all      []memory.Record
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		relevant = memory.WithTimeout(ctx, g.cfg.SearchTimeout, "search", nil,
			func(ctx context.Context) ([]memory.Record, error) {
				return g.memory.Search(ctx, query, g.cfg.SearchTopK, in.UserID, true)
			})
	}()
	go func() {
		defer wg.Done()
		all = memory.WithTimeout(ctx, g.cfg.FetchTimeout, "get_all", nil,
			func(ctx context.Context) ([]memory.Record, error) {
				return g.memory.GetAll(ctx, in.UserID)
			})
	}()
	wg.Wait()

	memories := memory.WithoutCategory(relevant, memory.CategoryConversationPreferences)
	preferences := memory.WithCategory(all, memory.CategoryConversationPreferences)

	composed := prompt.AddSystemPrompts(
		in.Messages,
		in.AIFirstName, in.UserFirstName, in.UserGender,
		in.Location,
		memories, preferences,
		time.Now(),
	)

	windowed, err := tokens.Window(composed, g.cfg.Model, g.enc, g.cfg.TokenLimit)
	if err != nil {
		// Configuration bug: fail fast, never silently clamp.
		return nil, fmt.Errorf("windowing messages: %w", err)
	}
	if len(windowed) > maxMessageCount {
		windowed = windowed[len(windowed)-maxMessageCount:]
	}

	start := time.Now()
	completion, err := g.llm.StreamCompletion(ctx, windowed, g.cfg.Model)
	if err != nil {
		metrics.ModelCallErrors.Inc()
		return nil, fmt.Errorf("%w: %w", ErrModelCall, err)
	}

	stream := &Stream{fragments: make(chan string)}
	go g.pump(ctx, in, completion, stream, start)
	return stream, nil
}

// pump forwards fragments to the consumer while accumulating the full
// response, then kicks off final processing off the latency-critical path.
func (g *Generator) pump(ctx context.Context, in GenerateInput, completion CompletionStream, stream *Stream, start time.Time) {
	defer close(stream.fragments)
	defer completion.Close()

	// Token usage arrives on a trailing chunk after the finish reason, so the
	// loop runs to EOF rather than stopping at the first finish marker.
	var usage Usage
	for {
		chunk, err := completion.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.ModelCallErrors.Inc()
			stream.mu.Lock()
			stream.err = fmt.Errorf("%w: %w", ErrModelCall, err)
			stream.mu.Unlock()
			return
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if chunk.FinishReason != "" && chunk.FinishReason != string(openai.FinishReasonStop) {
			// Content filters and length cutoffs end the stream with an empty
			// or truncated response; worth a trace when diagnosing those.
			slog.Warn("generation stopped early",
				"finish_reason", chunk.FinishReason, "chat_id", in.ChatID)
		}
		if chunk.Content == "" {
			continue
		}

		stream.mu.Lock()
		stream.response.WriteString(chunk.Content)
		stream.mu.Unlock()

		select {
		case stream.fragments <- chunk.Content:
		case <-ctx.Done():
			// Caller disconnected: stop consuming the model stream but
			// still run final processing for what was generated.
			g.finish(ctx, in, stream.Response(), usage, start)
			return
		}
	}

	g.finish(ctx, in, stream.Response(), usage, start)
}

func (g *Generator) finish(ctx context.Context, in GenerateInput, response string, usage Usage, start time.Time) {
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	if in.SkipFinalProcessing {
		return
	}
	g.runner.Go(ctx, "final-processing", func(ctx context.Context) error {
		return g.FinalProcessing(ctx, in, response, usage)
	})
}

// FinalProcessing persists the completed turn, submits it for memory
// extraction, and tracks usage. Runs detached from the request; individual
// failures are logged and do not abort the remaining steps.
func (g *Generator) FinalProcessing(ctx context.Context, in GenerateInput, response string, usage Usage) error {
	userTimestamp := time.Now()
	agentTimestamp := userTimestamp.Add(-time.Second)

	userMessage := ""
	if len(in.Messages) > 1 {
		userMessage = LastUserMessage(in.Messages)
	}

	turn := Turn{
		ChatID:         in.ChatID,
		UserMessage:    userMessage,
		UserTimestamp:  userTimestamp,
		AgentMessage:   response,
		AgentTimestamp: agentTimestamp,
	}
	if err := g.store.AppendTurn(ctx, turn); err != nil {
		slog.Error("persisting turn", "error", err, "chat_id", in.ChatID)
	}

	g.addMemories(ctx, in, response)

	if err := g.tracker.TrackMessageSent(ctx, in.UserID, in.ChatID.String(), in.ChatType, usage); err != nil {
		slog.Warn("tracking message", "error", err, "chat_id", in.ChatID)
	}
	metrics.ChatMessagesSent.WithLabelValues(in.ChatType).Inc()
	return nil
}

// addMemories submits the latest turns for fact extraction. Best effort with
// a longer timeout than the live retrieval path.
func (g *Generator) addMemories(ctx context.Context, in GenerateInput, response string) {
	withResponse := append(copyMessages(in.Messages), openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: response,
	})

	recent, err := g.recentTurns(withResponse)
	if err != nil {
		slog.Warn("selecting turns for memory extraction", "error", err)
		return
	}

	turns := make([]memory.Message, len(recent))
	for i, m := range recent {
		turns[i] = memory.Message{Role: m.Role, Content: m.Content}
	}

	memory.WithTimeout(ctx, g.cfg.AddTimeout, "add", struct{}{},
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, g.memory.Add(ctx, turns, in.UserID, memory.AddInstruction, memory.CustomCategories)
		})
}

// recentTurns returns the trailing messages used as context for memory
// operations: at least minSearchMessages, extended backward until
// searchContextTokens of estimated context are captured.
func (g *Generator) recentTurns(messages []openai.ChatCompletionMessage) ([]openai.ChatCompletionMessage, error) {
	window, err := tokens.Window(messages, g.cfg.Model, g.enc, searchContextTokens)
	if err != nil {
		return nil, fmt.Errorf("windowing memory search context: %w", err)
	}

	n := len(window)
	if n < minSearchMessages {
		n = minSearchMessages
	}
	if n > len(messages) {
		n = len(messages)
	}
	return messages[len(messages)-n:], nil
}

// searchQuery joins the content of the last few turns into the memory search
// query.
func searchQuery(recent []openai.ChatCompletionMessage) string {
	tail := recent
	if len(tail) > minSearchMessages {
		tail = tail[len(tail)-minSearchMessages:]
	}

	parts := make([]string, len(tail))
	for i, m := range tail {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}

func copyMessages(messages []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	copy(out, messages)
	return out
}
