// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral runner logic: registration table, one-shot interest
// bookkeeping, cross-goroutine task posting and the run-loop itself.

package reactor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Workiva/go-datastructures/queue"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/internal/concurrency"
	"github.com/momentics/hioload-nio/pool"
)

const (
	maxEvents     = 128
	taskQueueSize = 4096
)

// Handler receives readiness for one registered channel. HandleReady runs on
// the runner goroutine with a selector worker in ctx and must not block.
// HandleStop is invoked for every channel still registered when the runner
// stops.
type Handler interface {
	HandleReady(ctx context.Context, ready api.Interest)
	HandleStop()
}

// readyEvent is a raw readiness notification from the platform poller.
type readyEvent struct {
	fd    int
	ready api.Interest
}

// poller is the platform backend.
type poller interface {
	add(fd int, interest api.Interest) error
	mod(fd int, interest api.Interest) error
	del(fd int) error
	// wait blocks until events arrive or wake is called. It never returns
	// the wake descriptor itself.
	wait(events []readyEvent) (int, error)
	wake() error
	close() error
}

type registration struct {
	fd       int
	handler  Handler
	mu       sync.Mutex
	interest api.Interest // armed interest
	closed   bool
}

// Options configures runners.
type Options struct {
	Logger *zap.Logger
	Memory *pool.MemoryManager
	// PinCPU binds each runner's OS thread to CPU (runner id mod CPUs).
	PinCPU bool
}

// Runner is one reactor run-loop.
type Runner struct {
	id    int
	opts  Options
	log   *zap.Logger
	p     poller
	regs  cmap.ConcurrentMap[int, *registration]
	tasks *queue.RingBuffer

	mu      sync.RWMutex // guards running against task posting
	running bool
	stopReq atomic.Bool
	done    chan struct{}
}

// NewRunner creates a runner with its own poller. It is not started.
func NewRunner(id int, opts Options) (*Runner, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	return &Runner{
		id:   id,
		opts: opts,
		log:  opts.Logger.With(zap.Int("runner", id)),
		p:    p,
		regs: cmap.NewWithCustomShardingFunction[int, *registration](func(fd int) uint32 {
			return uint32(fd)
		}),
		tasks: queue.NewRingBuffer(taskQueueSize),
	}, nil
}

// ID returns the runner index within its pool.
func (r *Runner) ID() int { return r.id }

// Start launches the run-loop goroutine.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopReq.Store(false)
	r.done = make(chan struct{})
	go r.loop()
}

// IsRunning reports whether the run-loop accepts tasks.
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Stop terminates the run-loop, runs pending tasks, notifies every remaining
// registration and releases the poller. A stopped runner is not restarted.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.stopReq.Store(true)
	r.mu.Unlock()

	if err := r.p.wake(); err != nil {
		r.log.Warn("runner wake failed", zap.Error(err))
	}
	<-r.done
	if err := r.p.close(); err != nil {
		r.log.Debug("poller close failed", zap.Error(err))
	}
}

// Register adds fd with the given one-shot interest.
func (r *Runner) Register(fd int, interest api.Interest, h Handler) error {
	reg := &registration{fd: fd, handler: h, interest: interest}
	r.regs.Set(fd, reg)
	if err := r.p.add(fd, interest); err != nil {
		r.regs.Remove(fd)
		return err
	}
	return nil
}

// Enable arms additional interest for fd. Safe from any goroutine.
func (r *Runner) Enable(fd int, interest api.Interest) error {
	reg, ok := r.regs.Get(fd)
	if !ok {
		return api.ErrConnectionClosed
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.closed {
		return api.ErrConnectionClosed
	}
	if reg.interest&interest == interest {
		return nil
	}
	reg.interest |= interest
	return r.p.mod(fd, reg.interest)
}

// Disable removes interest for fd. Safe from any goroutine.
func (r *Runner) Disable(fd int, interest api.Interest) error {
	reg, ok := r.regs.Get(fd)
	if !ok {
		return nil
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.closed || reg.interest&interest == 0 {
		return nil
	}
	reg.interest &^= interest
	return r.p.mod(fd, reg.interest)
}

// Deregister removes fd from the poller on the run-loop, then calls then.
// If the runner is not running, it is done inline.
func (r *Runner) Deregister(fd int, then func()) {
	task := func(context.Context) {
		r.remove(fd)
		if then != nil {
			then()
		}
	}
	if err := r.Execute(task); err != nil {
		task(context.Background())
	}
}

// Execute posts task to the run-loop. It fails with api.ErrRunnerStopped
// once the runner no longer accepts tasks.
func (r *Runner) Execute(task func(ctx context.Context)) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.running {
		return api.ErrRunnerStopped
	}
	if err := r.tasks.Put(task); err != nil {
		return err
	}
	return r.p.wake()
}

// Registered returns the number of registered channels.
func (r *Runner) Registered() int { return r.regs.Count() }

func (r *Runner) remove(fd int) {
	reg, ok := r.regs.Get(fd)
	if !ok {
		return
	}
	reg.mu.Lock()
	reg.closed = true
	reg.mu.Unlock()
	r.regs.Remove(fd)
	if err := r.p.del(fd); err != nil {
		r.log.Debug("poller del failed", zap.Int("fd", fd), zap.Error(err))
	}
}

func (r *Runner) loop() {
	defer close(r.done)
	cpu := -1
	if r.opts.PinCPU {
		cpu = r.id
	}
	if err := concurrency.PinCurrentThread(cpu); err != nil {
		r.log.Warn("can not pin runner thread", zap.Int("cpu", cpu), zap.Error(err))
	}
	defer concurrency.UnpinCurrentThread()

	w := &concurrency.Worker{ID: r.id, Selector: true, Cache: pool.NewThreadCache(r.opts.Memory)}
	ctx := concurrency.WithWorker(context.Background(), w)

	events := make([]readyEvent, maxEvents)
	for {
		n, err := r.p.wait(events)
		if err != nil {
			r.log.Error("poller wait failed", zap.Error(err))
		}
		r.runTasks(ctx)
		if r.stopReq.Load() {
			break
		}
		for i := 0; i < n; i++ {
			r.dispatch(ctx, events[i])
		}
	}
	r.runTasks(ctx)
	r.shutdown()
}

func (r *Runner) runTasks(ctx context.Context) {
	for r.tasks.Len() > 0 {
		item, err := r.tasks.Get()
		if err != nil {
			return
		}
		if task, ok := item.(func(context.Context)); ok {
			r.safely(func() { task(ctx) })
		}
	}
}

// dispatch disarms the fired interests and re-arms whatever is still
// pending, since one-shot notification disarmed the whole descriptor.
func (r *Runner) dispatch(ctx context.Context, ev readyEvent) {
	reg, ok := r.regs.Get(ev.fd)
	if !ok {
		return
	}
	reg.mu.Lock()
	if reg.closed {
		reg.mu.Unlock()
		return
	}
	var fired api.Interest
	if ev.ready&api.InterestError != 0 {
		fired = reg.interest | api.InterestError
	} else {
		if ev.ready&api.InterestRead != 0 {
			fired |= reg.interest & (api.InterestRead | api.InterestAccept)
		}
		if ev.ready&api.InterestWrite != 0 {
			fired |= reg.interest & (api.InterestWrite | api.InterestConnect)
		}
	}
	reg.interest &^= fired
	if reg.interest != 0 {
		if err := r.p.mod(reg.fd, reg.interest); err != nil {
			r.log.Debug("re-arm failed", zap.Int("fd", reg.fd), zap.Error(err))
		}
	}
	reg.mu.Unlock()

	if fired == 0 {
		return
	}
	r.safely(func() { reg.handler.HandleReady(ctx, fired) })
}

func (r *Runner) shutdown() {
	for _, reg := range r.regs.Items() {
		r.remove(reg.fd)
		r.safely(reg.handler.HandleStop)
	}
}

// safely runs fn, recovering panics to keep the run-loop alive.
func (r *Runner) safely(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic on reactor", zap.Any("panic", p), zap.Stack("stack"))
		}
	}()
	fn()
}
