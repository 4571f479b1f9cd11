package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most rate calls in any trailing window. It keeps a log of
// admission timestamps rather than fixed buckets.
type Limiter struct {
	mu     sync.Mutex
	stamps []time.Time
	rate   int
	window time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter that allows rate requests per window.
func New(rate int, window time.Duration) *Limiter {
	if rate < 1 {
		rate = 1
	}
	return &Limiter{
		rate:   rate,
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Wait blocks until a call may proceed and records it. The lock is held while
// sleeping so concurrent callers are admitted one at a time and cannot
// overrun the window between the check and the record.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := l.now()
		l.prune(now)
		if len(l.stamps) < l.rate {
			l.stamps = append(l.stamps, now)
			return nil
		}
		wait := l.window - now.Sub(l.stamps[0])
		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// InFlight returns how many admissions are still inside the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps)
}

func (l *Limiter) prune(now time.Time) {
	cut := 0
	for cut < len(l.stamps) && now.Sub(l.stamps[cut]) >= l.window {
		cut++
	}
	if cut > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[cut:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
