package workerpool

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("workerpool: stopped")

// Pool is a bounded pool of workers for blocking I/O tasks. Submitting keeps
// slow upstream calls off the goroutines that serve cheap operations.
type Pool struct {
	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// New creates a pool with the given worker count and queue depth and starts
// its workers.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	p := &Pool{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.done:
			// run tasks accepted before the stop, then exit
			for {
				select {
				case task := <-p.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues a task, blocking until there is room, the pool stops, or
// ctx is done. The stop signal is a separate channel rather than a close of
// the queue, so a Submit parked on a full queue unblocks with ErrStopped
// instead of panicking on a closed-channel send.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	select {
	case <-p.done:
		return ErrStopped
	default:
	}

	select {
	case p.tasks <- task:
		return nil
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals shutdown and waits for queued and in-flight tasks to finish.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}
