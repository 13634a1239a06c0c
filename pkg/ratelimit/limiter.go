// Package ratelimit implements a lock-free token bucket used to cap stage
// throughput against external service limits.
package ratelimit

import (
	"sync/atomic"
	"time"
)

// Limiter is an atomic token bucket refilled once per interval.
type Limiter struct {
	tokens       int64 // atomic
	maxTokens    int64
	refillRate   int64
	intervalNs   int64
	lastRefillNs int64 // atomic (UnixNano)
}

// New creates a limiter allowing rate tokens per interval.
func New(rate int, interval time.Duration) *Limiter {
	tokens := int64(rate)
	return &Limiter{
		tokens:       tokens,
		maxTokens:    tokens,
		refillRate:   tokens,
		intervalNs:   int64(interval),
		lastRefillNs: time.Now().UnixNano(),
	}
}

// Allow consumes a token if one is available.
func (l *Limiter) Allow() bool {
	now := time.Now().UnixNano()
	lastRefill := atomic.LoadInt64(&l.lastRefillNs)

	elapsed := now - lastRefill
	if elapsed >= l.intervalNs {
		intervals := elapsed / l.intervalNs
		tokensToAdd := intervals * l.refillRate

		// Only the goroutine that wins the CAS refills.
		if atomic.CompareAndSwapInt64(&l.lastRefillNs, lastRefill, now) {
			for {
				current := atomic.LoadInt64(&l.tokens)
				next := current + tokensToAdd
				if next > l.maxTokens {
					next = l.maxTokens
				}
				if atomic.CompareAndSwapInt64(&l.tokens, current, next) {
					break
				}
			}
		}
	}

	for {
		current := atomic.LoadInt64(&l.tokens)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&l.tokens, current, current-1) {
			return true
		}
	}
}

// Wait blocks until a token is available or the deadline passes. Returns
// false on timeout.
func (l *Limiter) Wait(maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)
	for {
		if l.Allow() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}
