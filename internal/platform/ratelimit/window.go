// Package ratelimit holds the in-process limiters guarding connection
// attempts, inbound commands and total concurrent sockets.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Window is a fixed-window counter per key. The first hit after a window has
// expired starts a new window with count 1; later hits increment and are
// allowed while the count stays within the ceiling. Each key has its own
// lock, so unrelated keys never contend.
type Window struct {
	ceiling int
	period  time.Duration
	clock   clockwork.Clock
	buckets sync.Map // string -> *bucket
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
	// dead buckets were removed from the map; callers holding a stale
	// pointer must look the key up again.
	dead bool
}

func NewWindow(ceiling int, period time.Duration, clock clockwork.Clock) *Window {
	return &Window{ceiling: ceiling, period: period, clock: clock}
}

func (w *Window) Allow(key string) bool {
	return w.AllowAt(key, w.clock.Now())
}

func (w *Window) AllowAt(key string, now time.Time) bool {
	for {
		v, _ := w.buckets.LoadOrStore(key, &bucket{})
		b := v.(*bucket)

		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		if b.resetAt.IsZero() || now.After(b.resetAt) {
			b.count = 1
			b.resetAt = now.Add(w.period)
		} else {
			b.count++
		}
		allowed := b.count <= w.ceiling
		b.mu.Unlock()
		return allowed
	}
}

// Forget drops the window for key.
func (w *Window) Forget(key string) {
	v, ok := w.buckets.Load(key)
	if !ok {
		return
	}
	b := v.(*bucket)
	b.mu.Lock()
	b.dead = true
	w.buckets.CompareAndDelete(key, b)
	b.mu.Unlock()
}

// Sweep removes every window that expired before now and returns how many
// were removed.
func (w *Window) Sweep(now time.Time) int {
	removed := 0
	w.buckets.Range(func(key, v any) bool {
		b := v.(*bucket)
		b.mu.Lock()
		if !b.dead && now.After(b.resetAt) {
			b.dead = true
			w.buckets.CompareAndDelete(key, b)
			removed++
		}
		b.mu.Unlock()
		return true
	})
	return removed
}

// Len is the number of tracked keys.
func (w *Window) Len() int {
	n := 0
	w.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// RunSweeper sweeps expired windows every interval until ctx is cancelled.
func (w *Window) RunSweeper(ctx context.Context, name string, interval time.Duration) {
	ticker := w.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if removed := w.Sweep(w.clock.Now()); removed > 0 {
				slog.Debug("Swept expired rate windows", "limiter", name, "removed", removed, "remaining", w.Len())
			}
		}
	}
}
