// Package ratelimit implements per-session sliding window admission control
// on top of Redis sorted sets.
package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/chatterbox/internal/store"
)

// ErrRateLimited is returned by callers that turn a rejection into an error.
var ErrRateLimited = errors.New("too many requests")

// Limiter implements sliding window rate limiting using Redis.
// Every check re-reads the store; nothing is cached between calls.
type Limiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now as the source of event timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a new rate limiter with Redis backend.
func NewLimiter(client redis.UniversalClient, opts ...Option) *Limiter {
	l := &Limiter{
		client: client,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit records one event for tag and reports whether the number of events
// within the trailing window is at most limit. Rejected calls are recorded too.
//
// Append, expire, prune and count run in a single MULTI/EXEC transaction, so
// concurrent calls for the same tag cannot observe each other's stale counts.
func (l *Limiter) Admit(ctx context.Context, tag string, window time.Duration, limit int) (bool, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	cutoffMs := now.Add(-window).UnixMilli()
	key := store.RatedKey(tag)

	// Members must be unique per call even within one millisecond.
	member := strconv.FormatInt(nowMs, 10) + ":" + uuid.NewString()

	var count *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: member})
		pipe.PExpire(ctx, key, window)
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoffMs, 10))
		count = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return false, store.Wrap("rate limit check", err)
	}

	return count.Val() <= int64(limit), nil
}

// Count returns the number of events currently inside the window for tag
// without recording a new one.
func (l *Limiter) Count(ctx context.Context, tag string, window time.Duration) (int64, error) {
	cutoffMs := l.now().Add(-window).UnixMilli()
	n, err := l.client.ZCount(ctx, store.RatedKey(tag), strconv.FormatInt(cutoffMs, 10), "+inf").Result()
	if err != nil {
		return 0, store.Wrap("rate limit count", err)
	}
	return n, nil
}
