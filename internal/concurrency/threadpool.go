// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ThreadPool implements api.Executor on top of an ants goroutine pool.
// Every running task gets a Worker with its own scratch cache; a Worker is
// attached to at most one task at a time.
//
// Submit never blocks: once every worker is busy, tasks wait in a FIFO
// backlog that busy workers drain before they return to the pool. Reactor
// goroutines submit here and must never wait on a worker.

package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/pool"
)

// ThreadPool is the worker pool used for protocol processing off the reactor.
type ThreadPool struct {
	pool    *ants.Pool
	workers sync.Pool
	nextID  atomic.Int32
	log     *zap.Logger

	mu      sync.Mutex
	size    int
	active  int
	backlog *queue.Queue
	closed  bool

	totalTasks     atomic.Int64
	completedTasks atomic.Int64
}

var _ api.Executor = (*ThreadPool)(nil)

// NewThreadPool creates a pool of size workers. Memory for scratch caches
// comes from mm.
func NewThreadPool(size int, mm *pool.MemoryManager, log *zap.Logger) (*ThreadPool, error) {
	if size <= 0 {
		size = DefaultRunnerCount() * 2
	}
	if log == nil {
		log = zap.NewNop()
	}
	tp := &ThreadPool{log: log, size: size, backlog: queue.New()}
	tp.workers.New = func() any {
		return &Worker{ID: int(tp.nextID.Add(1)), Cache: pool.NewThreadCache(mm)}
	}
	p, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	tp.pool = p
	return tp, nil
}

// Submit schedules task on a pool goroutine, or queues it when all workers
// are busy. It fails only once the pool is closed.
func (tp *ThreadPool) Submit(task func(ctx context.Context)) error {
	tp.mu.Lock()
	if tp.closed {
		tp.mu.Unlock()
		return api.ErrExecutorClosed
	}
	tp.totalTasks.Add(1)
	if tp.active >= tp.size {
		tp.backlog.Add(task)
		tp.mu.Unlock()
		return nil
	}
	tp.active++
	tp.mu.Unlock()

	err := tp.pool.Submit(func() { tp.work(task) })
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		// a finished ants worker not yet back in its pool
		go tp.work(task)
		return nil
	default:
		tp.mu.Lock()
		tp.active--
		tp.mu.Unlock()
		tp.totalTasks.Add(-1)
		if errors.Is(err, ants.ErrPoolClosed) {
			return api.ErrExecutorClosed
		}
		return err
	}
}

// work runs task, then keeps taking queued tasks until the backlog is empty.
func (tp *ThreadPool) work(task func(ctx context.Context)) {
	w := tp.workers.Get().(*Worker)
	defer tp.workers.Put(w)
	ctx := WithWorker(context.Background(), w)
	for task != nil {
		tp.run(ctx, task)
		task = tp.next()
	}
}

func (tp *ThreadPool) run(ctx context.Context, task func(ctx context.Context)) {
	defer tp.completedTasks.Add(1)
	defer func() {
		if r := recover(); r != nil {
			tp.log.Error("worker task panicked", zap.Any("panic", r))
		}
	}()
	task(ctx)
}

// next pops a queued task, or retires the calling worker when there is none.
func (tp *ThreadPool) next() func(ctx context.Context) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if tp.closed || tp.backlog.Length() == 0 || tp.active > tp.size {
		tp.active--
		return nil
	}
	return tp.backlog.Remove().(func(ctx context.Context))
}

// NumWorkers returns the configured pool capacity.
func (tp *ThreadPool) NumWorkers() int { return tp.pool.Cap() }

// Resize adjusts the capacity at runtime and starts workers for queued
// tasks the new capacity admits.
func (tp *ThreadPool) Resize(newCount int) {
	if newCount <= 0 {
		return
	}
	tp.pool.Tune(newCount)

	tp.mu.Lock()
	tp.size = newCount
	var start []func(ctx context.Context)
	for !tp.closed && tp.active < tp.size && tp.backlog.Length() > 0 {
		tp.active++
		start = append(start, tp.backlog.Remove().(func(ctx context.Context)))
	}
	tp.mu.Unlock()

	for _, task := range start {
		task := task
		if err := tp.pool.Submit(func() { tp.work(task) }); err != nil {
			go tp.work(task)
		}
	}
}

// Close releases the pool; queued tasks are dropped.
func (tp *ThreadPool) Close() {
	tp.mu.Lock()
	tp.closed = true
	dropped := tp.backlog.Length()
	tp.backlog = queue.New()
	tp.mu.Unlock()
	if dropped > 0 {
		tp.log.Debug("dropping queued tasks", zap.Int("tasks", dropped))
		tp.totalTasks.Add(-int64(dropped))
	}
	tp.pool.Release()
}

// Queued returns the number of tasks waiting for a worker.
func (tp *ThreadPool) Queued() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.backlog.Length()
}

// Stats returns basic executor metrics.
func (tp *ThreadPool) Stats() map[string]int64 {
	total := tp.totalTasks.Load()
	done := tp.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": done,
		"pending_tasks":   total - done,
		"queued_tasks":    int64(tp.Queued()),
		"running":         int64(tp.pool.Running()),
		"num_workers":     int64(tp.NumWorkers()),
	}
}
