package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/solace-ai/solace/internal/api"
	"github.com/solace-ai/solace/internal/auth"
	"github.com/solace-ai/solace/internal/settings"
)

// ChatStore is the persistence surface the handler needs.
type ChatStore interface {
	GetChat(ctx context.Context, id uuid.UUID) (*Chat, error)
	AppendTurn(ctx context.Context, turn Turn) error
}

// Handler serves the chat HTTP endpoints.
type Handler struct {
	repo      ChatStore
	settings  settings.Repository
	generator *Generator
	validate  *validator.Validate
}

func NewHandler(repo ChatStore, settingsRepo settings.Repository, generator *Generator) *Handler {
	return &Handler{
		repo:      repo,
		settings:  settingsRepo,
		generator: generator,
		validate:  validator.New(),
	}
}

// Chat handles POST /api/chat: authenticate, load the chat and the user's
// settings, then stream the generated response as plain text fragments.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	userID := claims.UserID()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid chat id"))
		return
	}

	// Unknown timezones degrade to UTC rather than failing the request.
	loc, err := time.LoadLocation(req.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "timezone", req.Timezone)
		loc = time.UTC
	}

	// The chat row and the user's settings have no dependency on each other,
	// so fetch them concurrently.
	type chatResult struct {
		chat *Chat
		err  error
	}
	type settingsResult struct {
		settings *settings.Settings
		err      error
	}
	chatCh := make(chan chatResult, 1)
	settingsCh := make(chan settingsResult, 1)
	go func() {
		c, err := h.repo.GetChat(r.Context(), chatID)
		chatCh <- chatResult{chat: c, err: err}
	}()
	go func() {
		s, err := h.settings.GetByUserID(r.Context(), userID)
		settingsCh <- settingsResult{settings: s, err: err}
	}()
	chatRes := <-chatCh
	settingsRes := <-settingsCh

	if chatRes.err != nil {
		slog.Error("loading chat", "error", chatRes.err, "chat_id", chatID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if chatRes.chat == nil {
		api.HandleError(w, api.ErrChatNotFound)
		return
	}
	if chatRes.chat.UserID != userID {
		api.HandleError(w, api.ErrOwnershipViolation)
		return
	}

	if settingsRes.err != nil {
		slog.Error("loading settings", "error", settingsRes.err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if settingsRes.settings == nil {
		api.HandleError(w, api.ErrSettingsNotFound)
		return
	}
	userSettings := settingsRes.settings

	stream, err := h.generator.Generate(r.Context(), GenerateInput{
		Messages:      ToCompletionMessages(req.Messages),
		UserID:        userID,
		ChatID:        chatID,
		ChatType:      "text",
		AIFirstName:   userSettings.AgentName,
		UserFirstName: userSettings.Name,
		UserGender:    userSettings.Gender,
		Location:      loc,
	})
	if err != nil {
		slog.Error("generating response", "error", err, "chat_id", chatID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for fragment := range stream.Fragments() {
		if _, err := w.Write([]byte(fragment)); err != nil {
			// Client went away; the generator notices via the request
			// context and still runs final processing.
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := stream.Err(); err != nil {
		// Headers are gone; all that is left is logging the truncation.
		slog.Error("response stream ended early", "error", err, "chat_id", chatID)
	}
}

// UpdateChat handles the internal POST /api/updateChat call: persist a
// completed turn on behalf of the voice pipeline.
func (h *Handler) UpdateChat(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid chat id"))
		return
	}

	turn := Turn{
		ChatID:         chatID,
		UserMessage:    req.NewUserMessage,
		UserTimestamp:  unixToTime(req.UserMessageTimestamp),
		AgentMessage:   req.NewAgentMessage,
		AgentTimestamp: unixToTime(req.AgentMessageTimestamp),
	}
	if err := h.repo.AppendTurn(r.Context(), turn); err != nil {
		slog.Error("persisting turn", "error", err, "chat_id", chatID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "chat updated")
}

// unixToTime converts fractional unix seconds to a time.Time.
func unixToTime(ts float64) time.Time {
	if ts == 0 {
		return time.Now()
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9))
}
