package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/chatbot-admin/backend/pkg/utils"
)

// WindowCounter is an atomic counter with expiry, such as a Redis INCR.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisLimiter is a fixed one-minute window shared by every instance that
// talks to the same Redis.
type RedisLimiter struct {
	counter      WindowCounter
	maxPerMinute int
	now          func() time.Time
}

func NewRedisLimiter(counter WindowCounter, maxPerMinute int) *RedisLimiter {
	if maxPerMinute <= 0 {
		maxPerMinute = 60
	}
	return &RedisLimiter{counter: counter, maxPerMinute: maxPerMinute, now: time.Now}
}

func (l *RedisLimiter) Backend() string { return "redis" }

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.counter.IncrWindow(ctx, l.windowKey(key), time.Minute)
	if err != nil {
		return false, err
	}
	return count <= int64(l.maxPerMinute), nil
}

// windowKey hashes the caller so raw IPs and user ids never reach Redis.
func (l *RedisLimiter) windowKey(key string) string {
	return fmt.Sprintf("ratelimit:%s:%d", utils.HashString(key), l.now().Unix()/60)
}
