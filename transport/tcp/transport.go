// File: transport/tcp/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transport lifecycle. Start, Stop, Pause, Resume, Reconfigure and the
// registry operations hold one exclusive lock for their whole duration;
// none of them is re-entered from a callback of another.

package tcp

import (
	"sync"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/internal/concurrency"
	"github.com/momentics/hioload-nio/reactor"
)

type executorBox struct {
	api.Executor
	owned bool
}

type parkedInterest struct {
	ep       Endpoint
	interest api.Interest
}

// Transport is a non-blocking TCP transport instance.
type Transport struct {
	mu    sync.Mutex
	state atomic.Int32
	cfg   atomic.Pointer[Config]

	factory  channelFactory
	runners  atomic.Pointer[reactor.Pool]
	executor atomic.Pointer[executorBox]
	servers  cmap.ConcurrentMap[string, *ServerConnection]

	asyncReader    *AsyncQueueReader
	asyncWriter    *AsyncQueueWriter
	blockingReader *BlockingReader
	blockingWriter *BlockingWriter

	parkMu sync.Mutex
	parked []parkedInterest
}

// New creates a stopped transport.
func New(opts ...Option) *Transport {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a stopped transport from an explicit configuration.
func NewWithConfig(cfg Config) *Transport {
	cfg.normalize()
	t := &Transport{
		factory: defaultFactory(),
		servers: cmap.New[*ServerConnection](),
	}
	t.cfg.Store(&cfg)
	t.state.Store(int32(api.StateStopped))
	t.asyncReader = &AsyncQueueReader{t: t}
	t.asyncWriter = &AsyncQueueWriter{t: t}
	t.blockingReader = &BlockingReader{t: t}
	t.blockingWriter = &BlockingWriter{t: t}
	return t
}

// SetExecutor installs a caller-owned executor used from the next Start.
func (t *Transport) SetExecutor(e api.Executor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e == nil {
		t.executor.Store(nil)
		return
	}
	t.executor.Store(&executorBox{Executor: e})
}

func (t *Transport) config() *Config     { return t.cfg.Load() }
func (t *Transport) logger() *zap.Logger { return t.cfg.Load().Logger }

// Config returns a copy of the current configuration.
func (t *Transport) Config() Config { return *t.cfg.Load() }

// Name returns the configured transport name.
func (t *Transport) Name() string { return t.config().Name }

// State returns the lifecycle state.
func (t *Transport) State() api.State { return api.State(t.state.Load()) }

func (t *Transport) setState(s api.State) { t.state.Store(int32(s)) }

// IsStopped reports whether the transport is STOPPED.
func (t *Transport) IsStopped() bool { return t.State() == api.StateStopped }

// Runners returns the number of active reactors, 0 while stopped.
func (t *Transport) Runners() int {
	if p := t.runners.Load(); p != nil {
		return p.Len()
	}
	return 0
}

// Executor returns the active executor, nil while stopped.
func (t *Transport) Executor() api.Executor {
	if b := t.executor.Load(); b != nil {
		return b.Executor
	}
	return nil
}

// Start brings up the reactors and the thread pool, then starts listening on
// every registered server connection. Calling it outside STOPPED logs a
// warning and proceeds.
func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	log := t.logger()
	if s := t.State(); s != api.StateStopped {
		log.Warn("transport is not in STOPPED state", zap.Stringer("state", s))
	}
	t.setState(api.StateStarting)
	cfg := t.config()

	p := t.runners.Load()
	if p == nil {
		var err error
		p, err = reactor.NewPool(cfg.runnerCount(), reactor.Options{
			Logger: log.Named("reactor"),
			Memory: cfg.Memory,
			PinCPU: cfg.PinRunners,
		})
		if err != nil {
			t.setState(api.StateStopped)
			return err
		}
		t.runners.Store(p)
	}
	if t.executor.Load() == nil {
		tp, err := concurrency.NewThreadPool(cfg.workerCount(p.Len()), cfg.Memory, log.Named("workers"))
		if err != nil {
			p.Stop()
			t.runners.Store(nil)
			t.setState(api.StateStopped)
			return err
		}
		t.executor.Store(&executorBox{Executor: tp, owned: true})
	}

	p.Start()
	t.listenAll()

	t.setState(api.StateStarted)
	t.probe(func(pr api.TransportProbe) { pr.OnStart(cfg.Name) })
	return nil
}

func (t *Transport) listenAll() {
	for _, sc := range t.servers.Items() {
		if err := sc.listen(); err != nil {
			t.logger().Warn("exception occurred when starting server connection",
				zap.String("conn", sc.ID()), zap.Error(err))
		}
	}
}

// Stop unbinds every listener, stops the reactors and shuts the owned thread
// pool down.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.unbindAllLocked()
	t.setState(api.StateStopped)

	if p := t.runners.Swap(nil); p != nil {
		p.Stop()
	}
	if b := t.executor.Load(); b != nil && b.owned {
		b.Close()
		t.executor.Store(nil)
	}
	t.parkMu.Lock()
	t.parked = nil
	t.parkMu.Unlock()

	t.probe(func(pr api.TransportProbe) { pr.OnStop(t.config().Name) })
	return nil
}

// Pause suspends event processing; readiness arriving meanwhile is held
// until Resume. Pausing a stopped transport still moves it to PAUSED with
// no reactors running, so Bind fails with api.ErrTransportStopped until
// Start.
func (t *Transport) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.State(); s != api.StateStarted {
		t.logger().Warn("transport is not in STARTED state", zap.Stringer("state", s))
	}
	t.setState(api.StatePaused)
	t.probe(func(pr api.TransportProbe) { pr.OnPause(t.config().Name) })
	return nil
}

// Resume re-enables event processing and re-arms held readiness.
func (t *Transport) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.State(); s != api.StatePaused {
		t.logger().Warn("transport is not in PAUSED state", zap.Stringer("state", s))
	}
	t.setState(api.StateStarted)

	t.parkMu.Lock()
	parked := t.parked
	t.parked = nil
	t.parkMu.Unlock()
	for _, p := range parked {
		if err := p.ep.rearm(p.interest); err != nil {
			t.logger().Debug("re-arm after resume failed", zap.String("conn", p.ep.ID()), zap.Error(err))
		}
	}

	t.probe(func(pr api.TransportProbe) { pr.OnResume(t.config().Name) })
	return nil
}

func (t *Transport) park(ep Endpoint, interest api.Interest) {
	t.parkMu.Lock()
	t.parked = append(t.parked, parkedInterest{ep: ep, interest: interest})
	t.parkMu.Unlock()
}

// Reconfigure applies fn to a copy of the configuration and installs it.
// Connections created afterwards observe the new values.
func (t *Transport) Reconfigure(fn func(*Config)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cfg := *t.config()
	fn(&cfg)
	cfg.normalize()
	t.cfg.Store(&cfg)
	t.probe(func(pr api.TransportProbe) { pr.OnConfigChange(cfg.Name) })
}

func (t *Transport) probe(fn func(api.TransportProbe)) {
	for _, p := range t.config().Probes {
		fn(p)
	}
}

func (t *Transport) probeConn(fn func(api.ConnectionProbe)) {
	for _, p := range t.config().Probes {
		fn(p)
	}
}

// GetReader returns the blocking or the async-queue reader.
func (t *Transport) GetReader(blocking bool) Reader {
	if blocking {
		return t.blockingReader
	}
	return t.asyncReader
}

// GetWriter returns the blocking or the async-queue writer.
func (t *Transport) GetWriter(blocking bool) Writer {
	if blocking {
		return t.blockingWriter
	}
	return t.asyncWriter
}

// GetReaderFor selects the reader by the connection's blocking mode.
func (t *Transport) GetReaderFor(c *Connection) Reader { return t.GetReader(c.IsBlocking()) }

// GetWriterFor selects the writer by the connection's blocking mode.
func (t *Transport) GetWriterFor(c *Connection) Writer { return t.GetWriter(c.IsBlocking()) }
