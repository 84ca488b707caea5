package batch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_RunsEveryJob(t *testing.T) {
	for _, workers := range []int{0, 1, 3} {
		pool := NewWorkerPool(workers)
		pool.Start()

		var counter atomic.Int32
		for i := 0; i < 25; i++ {
			pool.Submit(func() { counter.Add(1) })
		}
		pool.Wait()
		pool.Close()

		if got := counter.Load(); got != 25 {
			t.Errorf("workers=%d: ran %d jobs, want 25", workers, got)
		}
	}
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	var running, peak atomic.Int32
	for i := 0; i < 8; i++ {
		pool.Submit(func() {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		})
	}
	pool.Wait()

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestWorkerPool_StartAndCloseAreIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	pool.Start()

	var mu sync.Mutex
	done := 0
	pool.Submit(func() {
		mu.Lock()
		done++
		mu.Unlock()
	})
	pool.Wait()
	pool.Close()
	pool.Close()

	if done != 1 {
		t.Errorf("job ran %d times, want 1", done)
	}
}
