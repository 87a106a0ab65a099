package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	Internal  InternalConfig
	LLM       LLMConfig
	Memory    MemoryConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

// InternalConfig guards the internal endpoints called by the voice pipeline
// and scheduled jobs.
type InternalConfig struct {
	CronSecret string
}

type LLMConfig struct {
	APIKey     string
	Model      string
	TokenLimit int
}

type MemoryConfig struct {
	BaseURL       string
	APIKey        string
	SearchTopK    int
	SearchTimeout time.Duration
	FetchTimeout  time.Duration
	AddTimeout    time.Duration
}

type RateLimitConfig struct {
	ChatMaxRequests int
	ChatWindowSec   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			Secret: k.String("jwt.secret"),
		},
		Internal: InternalConfig{
			CronSecret: k.String("cron.secret"),
		},
		LLM: LLMConfig{
			APIKey:     k.String("llm.api.key"),
			Model:      k.String("llm.model"),
			TokenLimit: k.Int("llm.token.limit"),
		},
		Memory: MemoryConfig{
			BaseURL:    k.String("memory.base.url"),
			APIKey:     k.String("memory.api.key"),
			SearchTopK: k.Int("memory.search.topk"),
		},
		RateLimit: RateLimitConfig{
			ChatMaxRequests: k.Int("ratelimit.chat.max.requests"),
			ChatWindowSec:   k.Int("ratelimit.chat.window.sec"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if origins := k.String("cors.allowed.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, o)
			}
		}
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "solace"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "solace"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini-2024-07-18"
	}
	if cfg.LLM.TokenLimit == 0 {
		cfg.LLM.TokenLimit = 125000
	}
	if cfg.Memory.BaseURL == "" {
		cfg.Memory.BaseURL = "https://api.mem0.ai"
	}
	if cfg.Memory.SearchTopK == 0 {
		cfg.Memory.SearchTopK = 10
	}
	if cfg.RateLimit.ChatMaxRequests == 0 {
		cfg.RateLimit.ChatMaxRequests = 30
	}
	if cfg.RateLimit.ChatWindowSec == 0 {
		cfg.RateLimit.ChatWindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.Memory.SearchTimeout, err = parseDuration(k, "memory.search.timeout", "300ms")
	if err != nil {
		return nil, err
	}
	cfg.Memory.FetchTimeout, err = parseDuration(k, "memory.fetch.timeout", "300ms")
	if err != nil {
		return nil, err
	}
	cfg.Memory.AddTimeout, err = parseDuration(k, "memory.add.timeout", "5s")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	str := k.String(key)
	if str == "" {
		str = fallback
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
