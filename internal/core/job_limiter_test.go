package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLimiter_Defaults(t *testing.T) {
	l := NewJobLimiter(0, 0)
	assert.Equal(t, DefaultMaxConcurrentJobs, l.MaxConcurrent())
	assert.Equal(t, DefaultMaxWaitTime, l.maxWait)
	assert.Equal(t, LimiterStatus{Active: 0, Available: DefaultMaxConcurrentJobs, MaxConcurrent: DefaultMaxConcurrentJobs}, l.Status())
}

func TestJobLimiter_StatusTracksSlots(t *testing.T) {
	l := NewJobLimiter(3, time.Second)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, LimiterStatus{Active: 2, Available: 1, MaxConcurrent: 3}, l.Status())

	l.Release()
	assert.Equal(t, LimiterStatus{Active: 1, Available: 2, MaxConcurrent: 3}, l.Status())
	l.Release()
	assert.Equal(t, 0, l.Status().Active)
}

func TestJobLimiter_FullLimiterTimesOut(t *testing.T) {
	l := NewJobLimiter(1, 30*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	start := time.Now()
	err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTooManyJobs)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 1, l.Status().Active)
}

func TestJobLimiter_CallerCancelWins(t *testing.T) {
	l := NewJobLimiter(1, time.Minute)
	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTooManyJobs)
}

func TestJobLimiter_WaiterGetsReleasedSlot(t *testing.T) {
	l := NewJobLimiter(1, time.Second)
	require.NoError(t, l.Acquire(context.Background()))

	got := make(chan error, 1)
	go func() { got <- l.Acquire(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	l.Release()

	select {
	case err := <-got:
		require.NoError(t, err)
		l.Release()
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released slot")
	}
}

func TestJobLimiter_NeverExceedsSize(t *testing.T) {
	const size = 2
	l := NewJobLimiter(size, 5*time.Second)

	var inFlight, peak atomic.Int64
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			defer l.Release()
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(size))
	assert.Equal(t, 0, l.Status().Active)
}

func TestJobLimiter_WaitForDrain(t *testing.T) {
	t.Run("idle limiter returns at once", func(t *testing.T) {
		l := NewJobLimiter(2, time.Second)
		assert.NoError(t, l.WaitForDrain(context.Background()))
		require.NoError(t, l.Acquire(context.Background()))
		l.Release()
	})

	t.Run("waits for running jobs", func(t *testing.T) {
		l := NewJobLimiter(2, time.Second)
		require.NoError(t, l.Acquire(context.Background()))

		var released atomic.Bool
		go func() {
			time.Sleep(20 * time.Millisecond)
			released.Store(true)
			l.Release()
		}()

		require.NoError(t, l.WaitForDrain(context.Background()))
		assert.True(t, released.Load())
		assert.Equal(t, 2, l.Status().Available)
	})

	t.Run("gives up when ctx ends", func(t *testing.T) {
		l := NewJobLimiter(1, time.Second)
		require.NoError(t, l.Acquire(context.Background()))
		defer l.Release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.WaitForDrain(ctx), context.DeadlineExceeded)
		assert.Equal(t, 1, l.Status().Active)
	})
}
