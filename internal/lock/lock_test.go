package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, err := m.TryAcquire(ctx, "gacha:pull-lock:p1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.TryAcquire(ctx, "gacha:pull-lock:p1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	ok, err = m.TryAcquire(ctx, "gacha:pull-lock:p2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other keys are independent")

	require.NoError(t, m.Release(ctx, "gacha:pull-lock:p1"))
	ok, err = m.TryAcquire(ctx, "gacha:pull-lock:p1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "released key is free again")
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.clock = func() time.Time { return now }

	ok, _ := m.TryAcquire(ctx, "k", 30*time.Second)
	require.True(t, ok)

	now = now.Add(29 * time.Second)
	ok, _ = m.TryAcquire(ctx, "k", 30*time.Second)
	assert.False(t, ok)

	now = now.Add(time.Second)
	ok, _ = m.TryAcquire(ctx, "k", 30*time.Second)
	assert.True(t, ok, "a crashed holder's lock frees itself at ttl")
}

func TestMemoryConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.TryAcquire(ctx, "k", time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := NewMemory().TryAcquire(ctx, "k", time.Minute)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisReleaseWithoutAcquireIsNoop(t *testing.T) {
	r := NewRedis(nil)
	assert.NoError(t, r.Release(context.Background(), "never-held"))
}
