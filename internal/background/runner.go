// Package background runs fire-and-forget work detached from the request
// that spawned it: turn persistence, memory writes, analytics. Failures are
// logged, never propagated, and a caller disconnect does not cancel work
// already in flight.
package background

import (
	"context"
	"log/slog"
	"sync"
)

// Runner tracks detached tasks so shutdown (and tests) can wait for them.
// The zero value is not usable; call New.
type Runner struct {
	wg sync.WaitGroup
}

func New() *Runner {
	return &Runner{}
}

// Go runs fn on its own goroutine. The derived context survives cancellation
// of ctx so that bookkeeping outlives a disconnected caller, and a panic in
// fn is confined to the task.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("background task panicked", "task", name, "panic", rec)
			}
		}()

		if err := fn(detached); err != nil {
			slog.Error("background task failed", "task", name, "error", err)
		}
	}()
}

// Wait blocks until all spawned tasks have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
