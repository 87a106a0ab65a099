package config

import (
	"errors"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWT.Secret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 characters")
	}

	if c.Internal.CronSecret == "" {
		errs = append(errs, "CRON_SECRET is required")
	} else if len(c.Internal.CronSecret) < 16 {
		errs = append(errs, "CRON_SECRET must be at least 16 characters")
	}

	if c.LLM.APIKey == "" {
		errs = append(errs, "LLM_API_KEY is required")
	}
	if c.LLM.TokenLimit < 1 {
		errs = append(errs, "LLM_TOKEN_LIMIT must be positive")
	}

	if c.Memory.APIKey == "" {
		errs = append(errs, "MEMORY_API_KEY is required")
	}
	if !strings.HasPrefix(c.Memory.BaseURL, "http") {
		errs = append(errs, "MEMORY_BASE_URL must be an http(s) URL")
	}

	if c.DB.Password == "" {
		slog.Warn("DB_PASSWORD is empty; acceptable only for local development")
	}
	if c.DB.SSLMode == "disable" {
		slog.Warn("DB_SSLMODE is disable; enable TLS for production databases")
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.New("invalid configuration:\n  - " + strings.Join(errs, "\n  - "))
}
