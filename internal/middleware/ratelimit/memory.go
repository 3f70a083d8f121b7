package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleBucketTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	limit         rate.Limit
	burst         int
	now           func() time.Time
	cleanupTicker *time.Ticker
	done          chan struct{}
	stopOnce      sync.Once
}

// NewMemoryLimiter allows maxPerMinute requests per key, refilled evenly, with
// up to burst requests at once.
func NewMemoryLimiter(maxPerMinute, burst int) *MemoryLimiter {
	if maxPerMinute <= 0 {
		maxPerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}

	l := &MemoryLimiter{
		buckets:       make(map[string]*bucket),
		limit:         rate.Every(time.Minute / time.Duration(maxPerMinute)),
		burst:         burst,
		now:           time.Now,
		cleanupTicker: time.NewTicker(5 * time.Minute),
		done:          make(chan struct{}),
	}

	go l.cleanup()

	return l
}

func (l *MemoryLimiter) Backend() string { return "memory" }

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

func (l *MemoryLimiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.evictIdle()
		case <-l.done:
			return
		}
	}
}

func (l *MemoryLimiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleBucketTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() {
		l.cleanupTicker.Stop()
		close(l.done)
	})
}
