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

func TestMemory_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Options{Attempts: 2, Wait: time.Millisecond})

	release, err := m.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "user:1", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := m.Acquire(ctx, "user:2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))

	again, err := m.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(Options{Attempts: 1})
	m.now = func() time.Time { return now }

	stale, err := m.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := m.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	// the expired holder must not free the new holder's lock
	require.NoError(t, stale(ctx))
	_, err = m.Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, fresh(ctx))
}

func TestMemory_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Options{Attempts: 200, Wait: time.Millisecond})

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "shared", time.Minute)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			assert.NoError(t, release(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestMemory_ContextCanceled(t *testing.T) {
	m := NewMemory(Options{Attempts: 100, Wait: 10 * time.Millisecond})
	_, err := m.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Acquire(ctx, "k", time.Minute)
	assert.Error(t, err)
}
