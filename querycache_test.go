package agricache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueryCacheReadThrough(t *testing.T) {
	cache := NewCacheStore[string, string]()
	defer cache.Close()
	qc := NewQueryCache(cache, time.Minute)

	var calls atomic.Int64
	compute := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "computed", nil
	}

	value, err := qc.GetOrCompute(context.Background(), "key1", compute)
	require.NoError(t, err)
	require.Equal(t, "computed", value)
	require.Equal(t, int64(1), calls.Load())

	// Second read is served from the cache.
	value, err = qc.GetOrCompute(context.Background(), "key1", compute)
	require.NoError(t, err)
	require.Equal(t, "computed", value)
	require.Equal(t, int64(1), calls.Load())
}

func TestQueryCacheComputeErrorNotCached(t *testing.T) {
	cache := NewCacheStore[string, string]()
	defer cache.Close()
	qc := NewQueryCache(cache, time.Minute)

	var calls atomic.Int64
	boom := errors.New("upstream unavailable")
	failing := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", boom
	}

	_, err := qc.GetOrCompute(context.Background(), "key1", failing)
	require.ErrorIs(t, err, boom)

	// The failure was not cached; the next read retries.
	_, err = qc.GetOrCompute(context.Background(), "key1", failing)
	require.ErrorIs(t, err, boom)
	require.Equal(t, int64(2), calls.Load())
}

func TestQueryCacheInvalidate(t *testing.T) {
	cache := NewCacheStore[string, string]()
	defer cache.Close()
	qc := NewQueryCache(cache, time.Minute)

	var calls atomic.Int64
	compute := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "computed", nil
	}

	_, err := qc.GetOrCompute(context.Background(), "key1", compute)
	require.NoError(t, err)
	require.True(t, qc.Invalidate("key1"))

	_, err = qc.GetOrCompute(context.Background(), "key1", compute)
	require.NoError(t, err)
	require.Equal(t, int64(2), calls.Load())
}

func TestQueryCacheConcurrentMissesLastWriterWins(t *testing.T) {
	cache := NewCacheStore[string, int]()
	defer cache.Close()
	qc := NewQueryCache(cache, time.Minute)

	var calls atomic.Int64
	compute := func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := qc.GetOrCompute(context.Background(), "key1", compute)
			if err == nil && value != 42 {
				t.Errorf("got %d, want 42", value)
			}
		}()
	}
	wg.Wait()

	// Concurrent misses may each compute, but exactly one value is stored.
	value, ok := cache.Get("key1")
	require.True(t, ok)
	require.Equal(t, 42, value)
	require.GreaterOrEqual(t, calls.Load(), int64(1))
}
