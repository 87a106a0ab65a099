package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/solace-ai/solace/internal/metrics"
)

// WithTimeout runs fn with a deadline and substitutes fallback on timeout or
// error. Every live-path call to the memory service goes through this: a
// degraded response without memories is strictly preferred over blocking or
// failing the user-facing request.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, op string, fallback T, fn func(context.Context) (T, error)) T {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := fn(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			metrics.MemoryServiceTimeouts.WithLabelValues(op).Inc()
			slog.Warn("memory service call timed out", "op", op, "timeout", timeout)
		} else {
			slog.Warn("memory service call failed", "op", op, "error", err)
		}
		return fallback
	}
	return result
}
