// Package parallel runs independent per-image tasks on a fixed set of
// workers.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

type (
	WorkerFunc func(func())
	WaitFunc   func(done bool)
	CancelFunc func()

	// Task receives the id the pool assigned to it.
	Task func(id uint64)
)

// Pool dispatches work to its workers. With a single worker, Do runs the
// function on the calling goroutine.
type Pool struct {
	wg     sync.WaitGroup
	nextID atomic.Uint64
	Do     WorkerFunc
	Wait   WaitFunc
	Cancel CancelFunc
}

func Start(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	pool := &Pool{
		Do: func(f func()) {
			f()
		},
		Wait:   func(bool) {},
		Cancel: func() {},
	}

	if numWorkers > 1 {
		workChan := make(chan func(), numWorkers)

		for range numWorkers {
			pool.wg.Go(func() {
				for f := range workChan {
					f()
				}
			})
		}

		pool.Do = func(f func()) {
			workChan <- f
		}

		pool.Wait = func(done bool) {
			if done {
				pool.Cancel()
			}
			pool.wg.Wait()
		}
		pool.Cancel = sync.OnceFunc(func() { close(workChan) })
	}

	return pool
}

// Submit queues t under a new task id. Cancellation is only observed
// between tasks: a cancelled ctx prevents t from being queued or, if it is
// already queued, from starting, but never interrupts a running task.
func (p *Pool) Submit(ctx context.Context, t Task) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	id := p.nextID.Add(1)
	p.Do(func() {
		if ctx.Err() != nil {
			return
		}
		t(id)
	})
	return id, nil
}
