package core

import (
	"context"
	"time"
)

// SleepFunc pauses for d or until ctx is done. Loops take one so tests can
// run them without waiting.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d and returns ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
