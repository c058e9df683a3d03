package fetch

import (
	"context"
	"sync"
)

// Task is a unit of work submitted to the WorkerPool
type Task func(ctx context.Context)

// WorkerPool runs tasks using a fixed number of goroutines
type WorkerPool struct {
	tasks   chan Task
	wg      sync.WaitGroup
	workers int
	closeMu sync.Mutex
	closed  bool
}

// NewWorkerPool creates a pool with the given number of workers and queue capacity
func NewWorkerPool(workers, queue int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}
	return &WorkerPool{
		tasks:   make(chan Task, queue),
		workers: workers,
	}
}

// Start begins the worker goroutines. Workers exit when ctx is done or Close is called.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-p.tasks:
					if !ok {
						return
					}
					task(ctx)
				}
			}
		}()
	}
}

// Submit enqueues a task. It returns ErrPoolClosed after Close.
func (p *WorkerPool) Submit(task Task) error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.tasks <- task
	return nil
}

// Close stops accepting tasks and waits for workers to finish
func (p *WorkerPool) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.closeMu.Unlock()
	p.wg.Wait()
}

// ErrPoolClosed is returned if a Submit is attempted after Close
var ErrPoolClosed = &PoolError{"worker pool closed"}

// PoolError provides a simple typed error for pool operations
type PoolError struct{ msg string }

func (e *PoolError) Error() string { return e.msg }
