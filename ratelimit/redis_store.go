// ratelimit/redis_store.go
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkAndIncrScript performs the fixed-window check-and-increment in one
// atomic server-side step. It refuses to increment past the ceiling.
// KEYS[1] = bucket key
// ARGV[1] = request ceiling
// ARGV[2] = TTL in milliseconds
// Returns: [count, incremented (1/0)]
const checkAndIncrScript = `
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count >= tonumber(ARGV[1]) then
	return {count, 0}
end
count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {count, 1}
`

// RedisStore backs the limiter with a shared Redis counter, so every node
// behind a load balancer sees the same buckets.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) CheckAndIncrement(ctx context.Context, bucketKey string, limit int, ttl time.Duration) (int, bool, error) {
	result, err := s.client.Eval(ctx, checkAndIncrScript, []string{bucketKey}, limit, ttl.Milliseconds()).Result()
	if err != nil {
		return 0, false, fmt.Errorf("failed to execute rate limit script: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return 0, false, fmt.Errorf("unexpected rate limit script result: %v", result)
	}
	count, _ := values[0].(int64)
	incremented, _ := values[1].(int64)
	return int(count), incremented == 1, nil
}

func (s *RedisStore) Count(ctx context.Context, bucketKey string) (int, error) {
	count, err := s.client.Get(ctx, bucketKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit bucket: %w", err)
	}
	return count, nil
}

// DeleteBefore scans for bucket keys whose window start predates the
// horizon and deletes them. Buckets also carry a PEXPIRE, so this is a
// backstop rather than the primary reclamation path.
func (s *RedisStore) DeleteBefore(ctx context.Context, horizon time.Time) (int, error) {
	horizonMs := horizon.UnixMilli()
	deleted := 0

	iter := s.client.Scan(ctx, 0, "ratelimit:*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		windowStart, ok := bucketWindowStart(key)
		if !ok || windowStart >= horizonMs {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return deleted, fmt.Errorf("failed to delete rate limit bucket %s: %w", key, err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan rate limit buckets: %w", err)
	}
	return deleted, nil
}

func bucketWindowStart(key string) (int64, bool) {
	idx := strings.LastIndex(key, ":")
	if idx < 0 {
		return 0, false
	}
	windowStart, err := strconv.ParseInt(key[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return windowStart, true
}
