package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-chat-be/internal/apperr"
)

func TestNewRejectsBadCapacity(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidConfiguration))
}

func TestGetOrComputeHitSkipsCompute(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	var calls int32
	compute := func(ctx context.Context) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		return []float32{1, 2, 3}, nil
	}

	ctx := context.Background()
	first, err := c.GetOrCompute(ctx, "fp-1", "model-a", compute)
	require.NoError(t, err)
	second, err := c.GetOrCompute(ctx, "fp-1", "model-a", compute)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	var calls int32
	compute := func(ctx context.Context) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return []float32{0.5, 0.5}, nil
	}

	const workers = 32
	results := make([][]float32, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			vec, err := c.GetOrCompute(context.Background(), "fp-shared", "model-a", compute)
			assert.NoError(t, err)
			results[i] = vec
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent callers must share one computation")
	for _, vec := range results {
		assert.Equal(t, []float32{0.5, 0.5}, vec)
	}
}

func TestGetOrComputeFailureStoresNothing(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	var calls int32
	boom := errors.New("provider down")
	failing := func(ctx context.Context) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	ctx := context.Background()
	_, err = c.GetOrCompute(ctx, "fp-err", "model-a", failing)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	// The next call retries instead of serving a poisoned entry.
	vec, err := c.GetOrCompute(ctx, "fp-err", "model-a", func(ctx context.Context) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		return []float32{9}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{9}, vec)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEntriesScopedByModelID(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	var calls int32
	compute := func(ctx context.Context) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		return []float32{1}, nil
	}

	ctx := context.Background()
	_, err = c.GetOrCompute(ctx, "fp-1", "model-a", compute)
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "fp-1", "model-b", compute)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "a cache entry is never reused across models")
	assert.True(t, c.Contains("fp-1", "model-a"))
	assert.True(t, c.Contains("fp-1", "model-b"))
}

func TestLeastRecentlyUsedEviction(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	ctx := context.Background()
	compute := func(vec []float32) func(ctx context.Context) ([]float32, error) {
		return func(ctx context.Context) ([]float32, error) { return vec, nil }
	}

	_, err = c.GetOrCompute(ctx, "fp-1", "m", compute([]float32{1}))
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "fp-2", "m", compute([]float32{2}))
	require.NoError(t, err)

	// Touch fp-1 so fp-2 is the eviction candidate.
	_, err = c.GetOrCompute(ctx, "fp-1", "m", compute(nil))
	require.NoError(t, err)

	_, err = c.GetOrCompute(ctx, "fp-3", "m", compute([]float32{3}))
	require.NoError(t, err)

	assert.True(t, c.Contains("fp-1", "m"))
	assert.False(t, c.Contains("fp-2", "m"))
	assert.True(t, c.Contains("fp-3", "m"))
	assert.Equal(t, 2, c.Len())
}

type countingProvider struct {
	calls int32
}

func (p *countingProvider) ModelID() string { return "test-model" }

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&p.calls, 1)
	return []float32{float32(len(text))}, nil
}

func TestCachedProviderSharesNormalizedText(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	backing := &countingProvider{}
	provider := NewCachedProvider(backing, c)

	ctx := context.Background()
	first, err := provider.Embed(ctx, "hello   world")
	require.NoError(t, err)
	second, err := provider.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backing.calls),
		"whitespace differences normalize to one fingerprint")
}
