package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newPools(t *testing.T, n int) map[string]Pool {
	t.Helper()
	naive, err := NewNaivePool(n)
	require.NoError(t, err)
	shared, err := NewSharedQueuePool(n)
	require.NoError(t, err)
	stealing, err := NewStealingPool(n)
	require.NoError(t, err)
	return map[string]Pool{
		"naive":        naive,
		"shared_queue": shared,
		"stealing":     stealing,
	}
}

func TestPoolsExecuteAllJobs(t *testing.T) {
	for name, p := range newPools(t, 4) {
		p := p
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			var count int64
			const total = 100
			wg.Add(total)
			for i := 0; i < total; i++ {
				p.Submit(func() {
					atomic.AddInt64(&count, 1)
					wg.Done()
				})
			}
			waitOrTimeout(t, &wg, 5*time.Second)
			require.EqualValues(t, total, atomic.LoadInt64(&count))
			p.Close()
		})
	}
}

// TestSharedQueuePoolSurvivesPanics checks that a shared-queue pool of
// size n keeps running k subsequent jobs after the first n jobs panic
// immediately.
func TestSharedQueuePoolSurvivesPanics(t *testing.T) {
	const n = 4
	p, err := NewSharedQueuePool(n)
	require.NoError(t, err)
	defer p.Close()

	var panicWG sync.WaitGroup
	panicWG.Add(n)
	for i := 0; i < n; i++ {
		p.Submit(func() {
			defer panicWG.Done()
			panic("boom")
		})
	}
	waitOrTimeout(t, &panicWG, 5*time.Second)

	const k = 100
	var okWG sync.WaitGroup
	var counter int64
	okWG.Add(k)
	for i := 0; i < k; i++ {
		p.Submit(func() {
			atomic.AddInt64(&counter, 1)
			okWG.Done()
		})
	}
	waitOrTimeout(t, &okWG, 5*time.Second)
	require.EqualValues(t, k, atomic.LoadInt64(&counter))
}

func TestNaivePoolSurvivesPanics(t *testing.T) {
	p, err := NewNaivePool(2)
	require.NoError(t, err)
	defer p.Close()

	var wg sync.WaitGroup
	wg.Add(3)
	p.Submit(func() { defer wg.Done(); panic("boom") })
	p.Submit(func() { defer wg.Done(); panic("boom") })
	var ran int32
	p.Submit(func() { defer wg.Done(); atomic.StoreInt32(&ran, 1) })
	waitOrTimeout(t, &wg, 5*time.Second)
	require.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestStealingPoolSurvivesPanics(t *testing.T) {
	p, err := NewStealingPool(4)
	require.NoError(t, err)
	defer p.Close()

	var wg sync.WaitGroup
	wg.Add(8)
	var counter int64
	for i := 0; i < 4; i++ {
		p.Submit(func() { defer wg.Done(); panic("boom") })
	}
	for i := 0; i < 4; i++ {
		p.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
		})
	}
	waitOrTimeout(t, &wg, 5*time.Second)
	require.EqualValues(t, 4, atomic.LoadInt64(&counter))
}

func TestNewPoolRejectsNonPositiveSize(t *testing.T) {
	_, err := NewNaivePool(0)
	require.Error(t, err)
	_, err = NewSharedQueuePool(-1)
	require.Error(t, err)
	_, err = NewStealingPool(0)
	require.Error(t, err)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for jobs to complete")
	}
}
