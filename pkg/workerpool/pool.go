// Package workerpool runs independent units of work with bounded parallelism
// and hands the results back in submission order.
package workerpool

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Config configures a Pool.
type Config struct {
	MaxConcurrent int // Maximum concurrent items (default: number of CPUs)
}

// DefaultConfig returns a config sized to the machine.
func DefaultConfig() Config {
	return Config{MaxConcurrent: runtime.NumCPU()}
}

// Pool bounds how many work items execute at once.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a Pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the concurrency bound.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// Item is a unit of work.
type Item[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// Result is the outcome of one Item.
type Result[T any] struct {
	ID    string
	Value T
	Err   error
}

// Process executes all items with bounded parallelism and returns results in
// submission order. Items that have not started when ctx is cancelled report
// ctx.Err(). Every item runs even if others fail.
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []Item[T],
	onProgress func(completed, total int),
) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], len(items))
	next := make(chan int)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)

	workers := min(pool.config.MaxConcurrent, len(items))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				item := items[i]
				var r Result[T]
				if err := ctx.Err(); err != nil {
					r = Result[T]{ID: item.ID, Err: err}
				} else {
					v, err := item.Execute(ctx)
					r = Result[T]{ID: item.ID, Value: v, Err: err}
				}
				results[i] = r

				if onProgress != nil {
					mu.Lock()
					completed++
					onProgress(completed, len(items))
					mu.Unlock()
				}
			}
		}()
	}

	for i := range items {
		next <- i
	}
	close(next)
	wg.Wait()

	pool.logger.Debug("Processed work items",
		zap.Int("items", len(items)),
		zap.Int("workers", workers))

	return results
}
