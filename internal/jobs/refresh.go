package jobs

import (
	"context"
	"time"

	"tweetsched/internal/logging"
)

// Invalidator is the part of the query cache the loop needs.
type Invalidator interface {
	Invalidate(key, reason string)
}

// RunRefreshOnce marks key stale and runs refetch. Errors are returned to
// the caller; there is no early retry.
func RunRefreshOnce(ctx context.Context, inv Invalidator, key string, refetch func(context.Context) error) error {
	inv.Invalidate(key, "refresh")
	if refetch == nil {
		return nil
	}
	return refetch(ctx)
}

// RunRefreshLoop runs RunRefreshOnce on a fixed ticker until ctx is
// cancelled. A failed tick is logged and the next attempt waits for the
// following tick.
func RunRefreshLoop(ctx context.Context, inv Invalidator, key string, interval time.Duration, refetch func(context.Context) error) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Info("refresh_loop_stop", map[string]any{"key": key})
			return ctx.Err()
		case <-t.C:
			if err := RunRefreshOnce(ctx, inv, key, refetch); err != nil && ctx.Err() == nil {
				logging.Error("refresh_once_error", map[string]any{"key": key, "error": err.Error()})
			}
		}
	}
}
