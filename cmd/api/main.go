package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/solace-ai/solace/internal/analytics"
	"github.com/solace-ai/solace/internal/api"
	"github.com/solace-ai/solace/internal/auth"
	"github.com/solace-ai/solace/internal/background"
	"github.com/solace-ai/solace/internal/chat"
	"github.com/solace-ai/solace/internal/config"
	"github.com/solace-ai/solace/internal/database"
	"github.com/solace-ai/solace/internal/llm"
	"github.com/solace-ai/solace/internal/memory"
	"github.com/solace-ai/solace/internal/middleware"
	inats "github.com/solace-ai/solace/internal/nats"
	iredis "github.com/solace-ai/solace/internal/redis"
	"github.com/solace-ai/solace/internal/server"
	"github.com/solace-ai/solace/internal/settings"
	"github.com/solace-ai/solace/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("validating config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS JetStream
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	// Tokenizer
	encoding, err := tokens.NewEncoding(tokens.DefaultEncodingName)
	if err != nil {
		slog.Error("loading token encoding", "error", err)
		os.Exit(1)
	}

	// Usage analytics: publisher on the request path, consumer persisting
	// events to the database.
	publisher := inats.NewPublisher(natsClient.JetStream())
	tracker := analytics.NewTracker(publisher, cfg.LLM.Model)
	usageRepo := analytics.NewRepository(pool)
	usageConsumer := analytics.NewConsumer(usageRepo, inats.NewConsumerManager(natsClient.JetStream()))

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() {
		if err := usageConsumer.Start(consumerCtx); err != nil {
			slog.Error("usage consumer stopped", "error", err)
		}
	}()

	// Chat pipeline
	memoryClient := memory.NewClient(cfg.Memory.BaseURL, cfg.Memory.APIKey)
	llmClient := llm.NewClient(cfg.LLM.APIKey)
	chatRepo := chat.NewRepository(pool)
	settingsRepo := settings.NewRepository(pool)
	runner := background.New()
	defer runner.Wait()

	generator := chat.NewGenerator(
		memoryClient,
		llmClient,
		chatRepo,
		tracker,
		runner,
		encoding,
		chat.GeneratorConfig{
			Model:         cfg.LLM.Model,
			TokenLimit:    cfg.LLM.TokenLimit,
			SearchTopK:    cfg.Memory.SearchTopK,
			SearchTimeout: cfg.Memory.SearchTimeout,
			FetchTimeout:  cfg.Memory.FetchTimeout,
			AddTimeout:    cfg.Memory.AddTimeout,
		},
	)
	chatHandler := chat.NewHandler(chatRepo, settingsRepo, generator)

	// Rate limiting
	chatLimiter := middleware.NewRateLimiter(
		redisClient, "chat",
		cfg.RateLimit.ChatMaxRequests, cfg.RateLimit.ChatWindowSec,
	)

	// Router
	router := api.NewRouter(pool, natsClient,
		api.RouterConfig{
			CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
			ChatRateLimiter:    chatLimiter.Middleware,
		},
		api.HandlerSet{
			Chat:                   chatHandler.Chat,
			UpdateChat:             chatHandler.UpdateChat,
			AuthMiddleware:         auth.Middleware(auth.NewVerifier(cfg.JWT.Secret)),
			InternalAuthMiddleware: auth.InternalMiddleware(cfg.Internal.CronSecret),
		},
	)

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
