// Package ratelimiter paces outbound webhook sends so consecutive
// destinations are not hit back to back.
package ratelimiter

import (
	"context"
	"sync"
	"time"
)

const sendRate = time.Second

type Limiter struct {
	mu       sync.Mutex
	lastSent time.Time
}

func New() *Limiter {
	return &Limiter{}
}

// Wait blocks until at least the send rate has elapsed since the previous
// send, then records the new send time. Returns early with the context
// error on cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	lastSent := l.lastSent
	l.mu.Unlock()

	if !lastSent.IsZero() {
		if delay := getDelay(lastSent); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	l.mu.Lock()
	l.lastSent = time.Now()
	l.mu.Unlock()

	return nil
}

func getDelay(lastSent time.Time) time.Duration {
	return max(sendRate-time.Since(lastSent), 0)
}
