// Package ratelimit implements the dual requests-per-second and
// requests-per-minute admission gate used to pace task submission
// against a translation platform's rate limits.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TaskLimiter gates task submission by two independent budgets: an
// instantaneous requests-per-second rate (one token per worker slot,
// so the configured worker pool is never outrun) and a fixed-window
// requests-per-minute ceiling. A zero rps disables the rps gate (every
// caller is admitted immediately); a zero rpm disables the rpm gate.
type TaskLimiter struct {
	rpsLimiter *rate.Limiter

	rpm   int
	mu    sync.Mutex
	count int
	reset time.Time
}

// NewTaskLimiter builds a limiter admitting at most rps requests per
// second (a burst of rps, matching the worker pool size) and at most
// rpm requests per one-minute window. The window is fixed: its counter
// resets once a minute has passed since the window opened, so two
// adjacent windows can together admit up to 2*rpm requests within 60
// seconds. rps<=0 disables the rps gate; rpm<=0 disables the rpm gate.
func NewTaskLimiter(rps, rpm int) *TaskLimiter {
	t := &TaskLimiter{rpm: rpm, reset: time.Now().Add(time.Minute)}
	if rps > 0 {
		t.rpsLimiter = rate.NewLimiter(rate.Limit(rps), rps)
	}
	return t
}

// Wait blocks until both budgets admit one more request, or ctx is
// cancelled.
func (t *TaskLimiter) Wait(ctx context.Context) error {
	if t.rpsLimiter != nil {
		if err := t.rpsLimiter.Wait(ctx); err != nil {
			return err
		}
	}
	return t.waitRPM(ctx)
}

func (t *TaskLimiter) waitRPM(ctx context.Context) error {
	if t.rpm <= 0 {
		return nil
	}
	for {
		wait, ok := t.tryAdmitRPM()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (t *TaskLimiter) tryAdmitRPM() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.After(t.reset) {
		t.count = 0
		t.reset = now.Add(time.Minute)
	}
	if t.count < t.rpm {
		t.count++
		return 0, true
	}
	return t.reset.Sub(now), false
}
