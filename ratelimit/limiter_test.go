// ratelimit/limiter_test.go
package ratelimit

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logger "github.com/veildata/veil/logging"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "veil-ratelimit-test")
	if err != nil {
		panic(err)
	}
	logger.InitLogger(dir)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newTestLimiter(store CounterStore) *Limiter {
	l := NewLimiter(store, Config{
		Endpoints: map[string]EndpointLimit{
			"query": {Requests: 3, WindowMs: 60000},
		},
		Default: EndpointLimit{Requests: 100, WindowMs: 60000},
	})
	return l
}

func TestCheckAllowsUpToLimit(t *testing.T) {
	l := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	l.now = func() time.Time { return time.UnixMilli(1_700_000_010_000) }

	for i := 0; i < 3; i++ {
		d := l.Check(ctx, "caller-1", "query")
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d := l.Check(ctx, "caller-1", "query")
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Positive(t, d.RetryAfter)
}

func TestCheckIsolatesCallersAndEndpoints(t *testing.T) {
	l := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	l.now = func() time.Time { return time.UnixMilli(1_700_000_010_000) }

	for i := 0; i < 3; i++ {
		require.True(t, l.Check(ctx, "caller-1", "query").Allowed)
	}
	assert.False(t, l.Check(ctx, "caller-1", "query").Allowed)

	// A different caller and a different endpoint still have budget.
	assert.True(t, l.Check(ctx, "caller-2", "query").Allowed)
	assert.True(t, l.Check(ctx, "caller-1", "admin").Allowed)
}

func TestCheckWindowRollover(t *testing.T) {
	l := newTestLimiter(NewMemoryStore())
	ctx := context.Background()

	current := time.UnixMilli(1_700_000_000_000)
	l.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		require.True(t, l.Check(ctx, "caller-1", "query").Allowed)
	}
	require.False(t, l.Check(ctx, "caller-1", "query").Allowed)

	// The next window starts with a fresh counter.
	current = current.Add(61 * time.Second)
	d := l.Check(ctx, "caller-1", "query")
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestCheckResetTimeAndRetryAfter(t *testing.T) {
	l := newTestLimiter(NewMemoryStore())
	ctx := context.Background()

	// 10 seconds into a window.
	l.now = func() time.Time { return time.UnixMilli(1_700_000_010_000) }

	var d = l.Check(ctx, "caller-1", "query")
	assert.Equal(t, int64(1_700_000_060_000), d.ResetTime)

	for i := 0; i < 2; i++ {
		l.Check(ctx, "caller-1", "query")
	}
	d = l.Check(ctx, "caller-1", "query")
	require.False(t, d.Allowed)
	assert.Equal(t, 50, d.RetryAfter)
}

func TestCheckUsesDefaultLimitForUnknownEndpoint(t *testing.T) {
	l := newTestLimiter(NewMemoryStore())

	d := l.Check(context.Background(), "caller-1", "something-else")
	assert.True(t, d.Allowed)
	assert.Equal(t, 100, d.Limit)
}

type failingStore struct{}

func (failingStore) CheckAndIncrement(context.Context, string, int, time.Duration) (int, bool, error) {
	return 0, false, errors.New("store down")
}
func (failingStore) Count(context.Context, string) (int, error) {
	return 0, errors.New("store down")
}
func (failingStore) DeleteBefore(context.Context, time.Time) (int, error) {
	return 0, errors.New("store down")
}

func TestCheckFailsOpenOnStoreError(t *testing.T) {
	l := newTestLimiter(failingStore{})

	d := l.Check(context.Background(), "caller-1", "query")
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)
}

func TestStatusDoesNotConsume(t *testing.T) {
	l := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	l.now = func() time.Time { return time.UnixMilli(1_700_000_010_000) }

	require.True(t, l.Check(ctx, "caller-1", "query").Allowed)

	for i := 0; i < 5; i++ {
		d, err := l.Status(ctx, "caller-1", "query")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2, d.Remaining)
	}
}

func TestCleanupDeletesOldBuckets(t *testing.T) {
	store := NewMemoryStore()
	l := newTestLimiter(store)
	ctx := context.Background()

	old := time.UnixMilli(1_700_000_000_000)
	l.now = func() time.Time { return old }
	l.Check(ctx, "caller-1", "query")

	// Two days later the old bucket is past retention.
	l.now = func() time.Time { return old.Add(48 * time.Hour) }
	l.Check(ctx, "caller-1", "query")

	deleted, err := l.Cleanup(ctx, DefaultRetention)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// The current bucket survived.
	d, err := l.Status(ctx, "caller-1", "query")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Remaining)
}

// Concurrent requests must never overshoot the ceiling: with 3 slots and
// 50 goroutines exactly 3 may pass.
func TestCheckConcurrentAtomicity(t *testing.T) {
	l := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	l.now = func() time.Time { return time.UnixMilli(1_700_000_010_000) }

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check(ctx, "caller-1", "query").Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), allowed)
}
