package ratelimit

import "sync/atomic"

// GlobalLimiter caps the number of concurrent sockets held by this process.
type GlobalLimiter struct {
	current atomic.Int64
	max     int64
}

func NewGlobalLimiter(max int64) *GlobalLimiter {
	return &GlobalLimiter{max: max}
}

// Acquire takes a slot, returning false when at capacity.
func (l *GlobalLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *GlobalLimiter) Release() {
	l.current.Add(-1)
}

func (l *GlobalLimiter) Current() int64 {
	return l.current.Load()
}

func (l *GlobalLimiter) Max() int64 {
	return l.max
}
