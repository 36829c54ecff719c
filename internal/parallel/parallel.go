// Package parallel provides parallel execution utilities for the gradient kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64, // Typical cache line aware chunk.
	}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		// Sequential fallback.
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Partitions splits [0, n) into parts disjoint contiguous ranges and executes
// f(part, start, end) for each non-empty range, one goroutine per range. The
// ranges never overlap, so each worker owns its slice of the iteration space
// exclusively. Returns after all workers complete (full barrier).
//
// When n < parts, trailing partitions receive empty ranges and f is not
// invoked for them.
func Partitions(n, parts int, f func(part, start, end int)) {
	if parts < 1 {
		parts = 1
	}

	chunk := (n + parts - 1) / parts

	var wg sync.WaitGroup
	for p := 0; p < parts; p++ {
		start := p * chunk
		end := min(start+chunk, n)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(part, s, e int) {
			defer wg.Done()
			f(part, s, e)
		}(p, start, end)
	}
	wg.Wait()
}
