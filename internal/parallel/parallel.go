// Package parallel splits index ranges across goroutines for batched
// convolution and sample loading.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Workers      int // Goroutines to use; <= 1 runs sequentially.
	MinChunkSize int // Minimum items per goroutine.
}

// DefaultConfig uses one worker per CPU and no minimum chunk size.
func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU(), MinChunkSize: 1}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{Workers: 1, MinChunkSize: 1}
}

func (c Config) chunk(n int) int {
	workers := max(c.Workers, 1)
	return max((n+workers-1)/workers, c.MinChunkSize, 1)
}

// For executes f(i) for i in [0, n), splitting the range into contiguous chunks.
// f must be safe to call concurrently for distinct i.
func For(n int, f func(i int), cfg Config) {
	if cfg.Workers <= 1 || n <= cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	size := cfg.chunk(n)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
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

// ForErr is For with fallible work items. Every item runs; the error of the
// lowest failing index is returned.
func ForErr(n int, f func(i int) error, cfg Config) error {
	errs := make([]error, n)
	For(n, func(i int) {
		errs[i] = f(i)
	}, cfg)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
