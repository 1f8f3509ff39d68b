// Package ratelimit throttles outbound calls to metered upstream APIs.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a token bucket shared by every caller of one upstream.
// Capacity is the burst size; refill is tokens per second.
type Limiter struct {
	mu       sync.Mutex
	capacity float64
	refill   float64
	b        bucket
	now      func() time.Time
}

// New returns a limiter that allows perMinute calls a minute with a burst of
// burst calls. perMinute <= 0 disables limiting.
func New(perMinute, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{capacity: float64(burst), refill: float64(perMinute) / 60, now: time.Now}
	l.b = bucket{tokens: l.capacity, last: l.now()}
	return l
}

func (l *Limiter) disabled() bool { return l == nil || l.refill <= 0 }

// reserve takes a token if one is available, otherwise reports how long
// until the next one.
func (l *Limiter) reserve() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if elapsed := now.Sub(l.b.last).Seconds(); elapsed > 0 {
		l.b.tokens += elapsed * l.refill
		if l.b.tokens > l.capacity {
			l.b.tokens = l.capacity
		}
		l.b.last = now
	}
	if l.b.tokens >= 1 {
		l.b.tokens--
		return 0, true
	}
	missing := 1 - l.b.tokens
	return time.Duration(missing / l.refill * float64(time.Second)), false
}

// Allow consumes a token without blocking.
func (l *Limiter) Allow() bool {
	if l.disabled() {
		return true
	}
	_, ok := l.reserve()
	return ok
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.disabled() {
		return ctx.Err()
	}
	for {
		wait, ok := l.reserve()
		if ok {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
