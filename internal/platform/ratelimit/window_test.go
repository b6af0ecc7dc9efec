package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestWindow_SixthAttemptRefusedUntilWindowRolls(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := NewWindow(5, time.Minute, clock)

	for i := range 5 {
		assert.True(t, w.Allow("10.0.0.1"), "attempt %d", i+1)
	}
	assert.False(t, w.Allow("10.0.0.1"), "sixth attempt within the window")

	clock.Advance(time.Minute)
	assert.False(t, w.Allow("10.0.0.1"), "window ends strictly after resetAt")

	clock.Advance(time.Millisecond)
	assert.True(t, w.Allow("10.0.0.1"), "new window after expiry")
}

func TestWindow_KeysAreIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := NewWindow(1, time.Minute, clock)

	assert.True(t, w.Allow("a"))
	assert.False(t, w.Allow("a"))
	assert.True(t, w.Allow("b"))
}

func TestWindow_AllowAt(t *testing.T) {
	w := NewWindow(2, 10*time.Second, clockwork.NewFakeClock())
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, w.AllowAt("k", start))
	assert.True(t, w.AllowAt("k", start.Add(5*time.Second)))
	assert.False(t, w.AllowAt("k", start.Add(10*time.Second)))
	assert.True(t, w.AllowAt("k", start.Add(11*time.Second)))
}

func TestWindow_ConcurrentAttemptsNeverExceedCeiling(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := NewWindow(10, time.Minute, clock)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Allow("shared") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), allowed.Load())
}

func TestWindow_ConcurrentWithSweepAndForget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := NewWindow(50, time.Minute, clock)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Allow("shared") {
				allowed.Add(1)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 50 {
			w.Sweep(clock.Now())
		}
	}()
	wg.Wait()

	assert.Equal(t, int64(50), allowed.Load(), "sweeping live windows must not reset them")
}

func TestWindow_Forget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := NewWindow(1, time.Minute, clock)

	assert.True(t, w.Allow("conn-1"))
	assert.False(t, w.Allow("conn-1"))

	w.Forget("conn-1")
	assert.Equal(t, 0, w.Len())
	assert.True(t, w.Allow("conn-1"))

	w.Forget("never-seen")
}

func TestWindow_SweepRemovesOnlyExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := NewWindow(3, time.Minute, clock)

	w.Allow("old")
	clock.Advance(45 * time.Second)
	w.Allow("fresh")
	clock.Advance(30 * time.Second)

	removed := w.Sweep(clock.Now())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, w.Len())
	assert.True(t, w.Allow("fresh"))
	assert.True(t, w.Allow("fresh"))
	assert.False(t, w.Allow("fresh"), "fresh kept its count")
}
