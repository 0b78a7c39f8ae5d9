// Package rate paces outgoing Discord REST calls.
package rate

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/robalyx/wordwatch/pkg/utils"
)

// Limiter spaces calls at least an interval apart, randomized by up to +/- jitter.
// It is shared by concurrent callers, which are admitted one slot at a time.
type Limiter struct {
	mu       sync.Mutex
	next     time.Time
	interval time.Duration
	jitter   time.Duration
}

// New creates a limiter. An interval of zero disables pacing.
func New(interval, jitter time.Duration) *Limiter {
	return &Limiter{interval: interval, jitter: min(jitter, interval)}
}

// delay returns the spacing to use for the next slot.
func (l *Limiter) delay() time.Duration {
	if l.jitter <= 0 {
		return l.interval
	}
	return l.interval - l.jitter + rand.N(2*l.jitter+1)
}

// WaitForNextSlot reserves the next free slot and blocks until it arrives.
func (l *Limiter) WaitForNextSlot(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.delay())
	l.mu.Unlock()

	return utils.ContextSleep(ctx, time.Until(slot))
}
