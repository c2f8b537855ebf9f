// ratelimit/limiter.go
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
)

// EndpointLimit is the fixed-window ceiling for one endpoint.
type EndpointLimit struct {
	Requests int
	WindowMs int64
}

// Config maps endpoint identifiers to their limits. Endpoints without an
// entry use Default.
type Config struct {
	Endpoints map[string]EndpointLimit
	Default   EndpointLimit
}

// CounterStore is the shared, transactional counter backing the limiter.
// CheckAndIncrement must be atomic: it increments the bucket unless the
// count already reached the limit, and reports the resulting count. Two
// concurrent calls must never both observe the last free slot.
type CounterStore interface {
	CheckAndIncrement(ctx context.Context, bucketKey string, limit int, ttl time.Duration) (count int, incremented bool, err error)
	Count(ctx context.Context, bucketKey string) (int, error)
	DeleteBefore(ctx context.Context, horizon time.Time) (int, error)
}

// Limiter counts requests in fixed, clock-aligned windows keyed by
// (callerKey, endpoint). On counter-store failure it fails OPEN: blocking
// legitimate traffic on an infrastructure hiccup is the worse outcome, and
// that tradeoff is deliberate.
type Limiter struct {
	store  CounterStore
	config Config
	now    func() time.Time
}

// DefaultRetention is how long stale buckets are kept before Cleanup may
// delete them.
const DefaultRetention = 24 * time.Hour

func NewLimiter(store CounterStore, config Config) *Limiter {
	if config.Default.Requests == 0 {
		config.Default = EndpointLimit{Requests: 100, WindowMs: 60000}
	}
	return &Limiter{store: store, config: config, now: time.Now}
}

// Check performs the atomic check-and-increment for the current window.
func (l *Limiter) Check(ctx context.Context, callerKey, endpoint string) model.RateLimitDecision {
	limit := l.limitFor(endpoint)
	now := l.now().UnixMilli()
	windowStart := (now / limit.WindowMs) * limit.WindowMs
	resetTime := windowStart + limit.WindowMs
	key := BucketKey(callerKey, endpoint, windowStart)

	ttl := time.Duration(resetTime-now)*time.Millisecond + DefaultRetention
	count, incremented, err := l.store.CheckAndIncrement(ctx, key, limit.Requests, ttl)
	if err != nil {
		logger.Warn("Rate limit store unavailable, failing open",
			zap.Error(err),
			zap.String("callerKey", callerKey),
			zap.String("endpoint", endpoint))
		return model.RateLimitDecision{
			Allowed:   true,
			Limit:     limit.Requests,
			Remaining: limit.Requests,
			ResetTime: resetTime,
		}
	}

	if !incremented {
		return model.RateLimitDecision{
			Allowed:    false,
			Limit:      limit.Requests,
			Remaining:  0,
			ResetTime:  resetTime,
			RetryAfter: int(math.Ceil(float64(resetTime-now) / 1000)),
		}
	}

	remaining := limit.Requests - count
	if remaining < 0 {
		remaining = 0
	}
	return model.RateLimitDecision{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: remaining,
		ResetTime: resetTime,
	}
}

// Status reports current usage without consuming a slot. Diagnostic use.
func (l *Limiter) Status(ctx context.Context, callerKey, endpoint string) (model.RateLimitDecision, error) {
	limit := l.limitFor(endpoint)
	now := l.now().UnixMilli()
	windowStart := (now / limit.WindowMs) * limit.WindowMs
	resetTime := windowStart + limit.WindowMs

	count, err := l.store.Count(ctx, BucketKey(callerKey, endpoint, windowStart))
	if err != nil {
		return model.RateLimitDecision{}, fmt.Errorf("failed to read rate limit bucket: %w", err)
	}

	remaining := limit.Requests - count
	if remaining < 0 {
		remaining = 0
	}
	return model.RateLimitDecision{
		Allowed:   count < limit.Requests,
		Limit:     limit.Requests,
		Remaining: remaining,
		ResetTime: resetTime,
	}, nil
}

// Cleanup deletes buckets whose window ended before the retention horizon.
// Past windows never influence current decisions, so this only bounds
// storage growth.
func (l *Limiter) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	deleted, err := l.store.DeleteBefore(ctx, l.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up rate limit buckets: %w", err)
	}
	if deleted > 0 {
		logger.Info("Cleaned up expired rate limit buckets", zap.Int("deleted", deleted))
	}
	return deleted, nil
}

func (l *Limiter) limitFor(endpoint string) EndpointLimit {
	if limit, ok := l.config.Endpoints[endpoint]; ok {
		return limit
	}
	return l.config.Default
}

// BucketKey builds the composite bucket key. The window start is part of
// the key, so each window gets a fresh counter.
func BucketKey(callerKey, endpoint string, windowStart int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", callerKey, endpoint, windowStart)
}
