package quartz

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// workerPool is a bounded set of runner goroutines consuming fire
// bundles. The scheduling loop is the single producer.
type workerPool struct {
	capacity int
	slots    *semaphore.Weighted
	tasks    chan func()
	wg       sync.WaitGroup
	once     sync.Once
}

func newWorkerPool(capacity int) *workerPool {
	if capacity < 1 {
		capacity = 1
	}
	return &workerPool{
		capacity: capacity,
		slots:    semaphore.NewWeighted(int64(capacity)),
		tasks:    make(chan func()),
	}
}

// start launches the worker goroutines. Workers exit when the task
// channel is closed; the context bounds the execution of the tasks
// themselves.
func (p *workerPool) start() {
	for i := 0; i < p.capacity; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
}

// blockForAvailableWorker blocks until at least one worker slot is free
// or the context is canceled. It does not hold the slot; dispatch
// re-acquires it.
func (p *workerPool) blockForAvailableWorker(ctx context.Context) bool {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return false
	}
	p.slots.Release(1)
	return true
}

// dispatch hands a task to a worker, blocking until one is free. The
// slot is released when the task returns.
func (p *workerPool) dispatch(ctx context.Context, task func()) bool {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return false
	}
	wrapped := func() {
		defer p.slots.Release(1)
		task()
	}
	select {
	case p.tasks <- wrapped:
		return true
	case <-ctx.Done():
		p.slots.Release(1)
		return false
	}
}

// shutdown stops accepting tasks. With wait set it blocks until all
// in-flight tasks have returned.
func (p *workerPool) shutdown(wait bool) {
	p.once.Do(func() { close(p.tasks) })
	if wait {
		p.wg.Wait()
	}
}
