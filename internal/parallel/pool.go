// Package parallel provides the data-parallel dispatch used by the
// pipeline stages. Each stage issues one logical unit of work per vertex,
// triangle, or pixel; the pool spreads those units across a fixed number
// of goroutines and returns only when every unit has completed, which is
// what makes a stage boundary a barrier.
package parallel

import (
	"runtime"
	"sync"
)

// Pool dispatches index-range work across worker goroutines.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	workers int
}

// NewPool creates a pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// For runs fn for every index in [0, n), split into contiguous chunks
// across the pool's workers, and blocks until all of them return.
//
// fn must not assume any ordering between indices; units of work that
// share state must synchronize on their own (the rasterizer's per-pixel
// locks, for example).
func (p *Pool) For(n int, fn func(i int)) {
	if n <= 0 {
		return
	}

	// Small batches are not worth the goroutine overhead.
	if n < 2*p.workers {
		for i := range n {
			fn(i)
		}
		return
	}

	chunk := (n + p.workers - 1) / p.workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}
