// internal/game/playback.go
package game

import (
	"context"
	"time"
)

// Playback paces a precomputed action list to clients. It holds no game logic.
type Playback struct {
	// Interval separates consecutive actions.
	Interval time.Duration
	// Settle is waited after the last action before done runs.
	Settle time.Duration
}

// Run emits every action in order, Interval apart, then waits Settle and calls done.
// It blocks; callers usually start it in its own goroutine. If ctx is cancelled Run
// returns early and done is not called.
func (p Playback) Run(ctx context.Context, actions []CombatAction, emit func(CombatAction), done func()) {
	for i, act := range actions {
		if i > 0 && !wait(ctx, p.Interval) {
			return
		}
		emit(act)
	}
	if !wait(ctx, p.Settle) {
		return
	}
	done()
}

// wait sleeps for d and reports false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
