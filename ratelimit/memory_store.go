// ratelimit/memory_store.go
package ratelimit

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-process counter store. Suitable for
// single-node deployments and tests; the mutex makes check-and-increment
// atomic with respect to concurrent requests.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]int)}
}

func (s *MemoryStore) CheckAndIncrement(_ context.Context, bucketKey string, limit int, _ time.Duration) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.buckets[bucketKey]
	if count >= limit {
		return count, false, nil
	}
	count++
	s.buckets[bucketKey] = count
	return count, true, nil
}

func (s *MemoryStore) Count(_ context.Context, bucketKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buckets[bucketKey], nil
}

func (s *MemoryStore) DeleteBefore(_ context.Context, horizon time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	horizonMs := horizon.UnixMilli()
	deleted := 0
	for key := range s.buckets {
		idx := strings.LastIndex(key, ":")
		if idx < 0 {
			continue
		}
		windowStart, err := strconv.ParseInt(key[idx+1:], 10, 64)
		if err != nil {
			continue
		}
		if windowStart < horizonMs {
			delete(s.buckets, key)
			deleted++
		}
	}
	return deleted, nil
}
