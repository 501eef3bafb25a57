package dispatcher

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcher_MaxConcurrencyOneNeverOverlaps(t *testing.T) {
	d := New(Config{MaxConcurrency: 1}, nil, zap.NewNop())

	var inFlight, maxSeen atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.Do(context.Background(), func(ctx context.Context) error {
				n := inFlight.Add(1)
				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), maxSeen.Load())
	assert.Equal(t, Stats{}, d.Stats())
}

func TestDispatcher_MaxConcurrencyBound(t *testing.T) {
	d := New(Config{MaxConcurrency: 3}, nil, zap.NewNop())

	var inFlight, maxSeen atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Do(context.Background(), func(ctx context.Context) error {
				n := inFlight.Add(1)
				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(3 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int64(3))
}

func TestDispatcher_PacingInterval(t *testing.T) {
	d := New(Config{RequestsPerSecond: 20, MaxConcurrency: 4}, nil, zap.NewNop())
	require.Equal(t, 50*time.Millisecond, d.MinInterval())
	assert.Equal(t, Stats{MinIntervalMs: 50}, d.Stats())

	const grants = 6
	var mu sync.Mutex
	var times []time.Time

	var wg sync.WaitGroup
	for i := 0; i < grants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Acquire(context.Background()))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
			d.Release()
		}()
	}
	wg.Wait()

	require.Len(t, times, grants)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		// sai số lập lịch
		assert.GreaterOrEqual(t, gap, 40*time.Millisecond, "grant %d", i)
	}
}

func TestDispatcher_FIFOOrder(t *testing.T) {
	d := New(Config{MaxConcurrency: 1}, nil, zap.NewNop())
	require.NoError(t, d.Acquire(context.Background()))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, d.Acquire(context.Background()))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			d.Release()
		}(i)
		// đợi goroutine vào hàng đợi trước khi tạo goroutine tiếp theo
		require.Eventually(t, func() bool { return d.Stats().Queued == int64(i+1) }, time.Second, time.Millisecond)
		time.Sleep(5 * time.Millisecond)
	}

	d.Release()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDispatcher_CanceledAcquireHoldsNoSlot(t *testing.T) {
	d := New(Config{MaxConcurrency: 1}, nil, zap.NewNop())
	require.NoError(t, d.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Acquire(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, Stats{Queued: 0, Active: 1}, d.Stats())

	d.Release()
	require.NoError(t, d.Acquire(context.Background()))
	d.Release()
}

func TestDispatcher_DoReleasesOnError(t *testing.T) {
	d := New(Config{MaxConcurrency: 1}, nil, zap.NewNop())
	boom := errors.New("boom")

	err := d.Do(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), d.Stats().Active)
}
