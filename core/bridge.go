package core

import (
	"context"
	"fmt"
	"sync"
)

const minBridgeWorkers = 2

// Task is a unit of work executed on the bridge.
type Task func(ctx context.Context) (any, error)

// Future is the one-shot completion signal of a submitted Task.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(value any, err error) {
	f.value, f.err = value, err
	close(f.done)
}

// Done is closed once the task finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the task finished and returns its result.
func (f *Future) Wait() (any, error) {
	<-f.done
	return f.value, f.err
}

// Bridge runs work for synchronous callers on a dedicated pool of worker
// goroutines with its own root context, independent of any caller context.
type Bridge struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*bridgeJob
	closed bool

	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

type bridgeJob struct {
	task   Task
	future *Future
}

// NewBridge starts a bridge with the given number of workers (at least 2,
// so a long-running supervisor never starves other work).
func NewBridge(workers int, logger Logger) *Bridge {
	if workers < minBridgeWorkers {
		workers = minBridgeWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{ctx: ctx, cancel: cancel, logger: logger}
	b.cond = sync.NewCond(&b.mu)

	b.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go b.worker()
	}
	logger.Debugf("Runtime bridge started with %d workers", workers)
	return b
}

// Context returns the bridge's root context. It is canceled by Shutdown.
func (b *Bridge) Context() context.Context { return b.ctx }

// Submit enqueues task. It never blocks; the returned Future fails with
// ErrBridgeClosed if the bridge is shut down.
func (b *Bridge) Submit(task Task) *Future {
	f := newFuture()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		f.complete(nil, ErrBridgeClosed)
		return f
	}
	b.queue = append(b.queue, &bridgeJob{task: task, future: f})
	b.mu.Unlock()
	b.cond.Signal()
	return f
}

// RunBlocking submits task and blocks the calling goroutine until it is done.
func (b *Bridge) RunBlocking(task Task) (any, error) {
	return b.Submit(task).Wait()
}

// Run is the typed form of RunBlocking.
func Run[T any](b *Bridge, task func(ctx context.Context) (T, error)) (T, error) {
	v, err := b.RunBlocking(func(ctx context.Context) (any, error) {
		return task(ctx)
	})
	typed, _ := v.(T)
	return typed, err
}

func (b *Bridge) worker() {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		job := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.execute(job)
	}
}

func (b *Bridge) execute(job *bridgeJob) {
	var (
		value any
		err   error
	)
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorf("Bridge task panicked: %v", r)
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			value = nil
		}
		job.future.complete(value, err)
	}()
	value, err = job.task(b.ctx)
}

// Shutdown stops accepting work, waits for queued and in-flight tasks and
// cancels the root context. It is idempotent.
func (b *Bridge) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		b.cond.Broadcast()

		b.wg.Wait()
		b.cancel()
		b.logger.Debugf("Runtime bridge stopped")
	})
}

// Closed reports whether Shutdown was called.
func (b *Bridge) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
