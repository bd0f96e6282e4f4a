package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// memoryLimiter holds one token bucket per key, created lazily on first use.
type memoryLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewMemory builds an in-process limiter: requestsPerSecond tokens refill
// per second, up to burst tokens banked.
func NewMemory(requestsPerSecond float64, burst int) Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &memoryLimiter{
		rps:     rate.Limit(requestsPerSecond),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow(), nil
}

func (l *memoryLimiter) Close(_ context.Context) error { return nil }
