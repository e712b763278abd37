// File: transport/tcp/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transport configuration and functional options.

package tcp

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/internal/concurrency"
	"github.com/momentics/hioload-nio/pool"
)

const (
	DefaultReadBufferSize  = 8192
	DefaultWriteBufferSize = 8192
	DefaultMaxReadAttempts = 3

	// DefaultBacklog is used by Bind and BindBacklog callers passing <= 0.
	DefaultBacklog = 4096
	// DefaultHostBacklog is used by BindHost.
	DefaultHostBacklog = 50

	DefaultUnbindTimeout     = 1000 * time.Millisecond
	DefaultConnectionTimeout = 30 * time.Second

	defaultName = "TCPTransport"
)

// IOStrategy selects where read- and write-ready processing runs.
type IOStrategy int

const (
	// WorkerStrategy hands processor execution to the thread pool.
	WorkerStrategy IOStrategy = iota
	// SameThreadStrategy runs the processor on the reactor goroutine.
	SameThreadStrategy
)

func (s IOStrategy) String() string {
	switch s {
	case WorkerStrategy:
		return "worker"
	case SameThreadStrategy:
		return "same-thread"
	default:
		return "unknown"
	}
}

// Config holds transport settings. Values are copied into the transport by
// New; later changes go through Transport.Reconfigure.
type Config struct {
	Name string

	ReadBufferSize  int
	WriteBufferSize int

	TCPNoDelay   bool
	ReuseAddress bool
	KeepAlive    bool
	// Linger in seconds; negative leaves SO_LINGER disabled.
	Linger int

	// ServerSocketTimeout is the listener receive timeout, 0 means infinite.
	ServerSocketTimeout time.Duration
	// ClientSocketTimeout bounds blocking reads and writes; negative is unset.
	ClientSocketTimeout time.Duration
	ConnectionTimeout   time.Duration
	UnbindTimeout       time.Duration

	MaxReadAttempts int

	// Runners is the reactor count; <= 0 derives it from the CPU count.
	Runners int
	// Workers is the thread pool size; <= 0 means twice the runner count.
	Workers    int
	PinRunners bool

	// Blocking selects the default reader/writer for new connections.
	Blocking  bool
	Strategy  IOStrategy
	Processor Processor

	Probes []api.Probe
	Logger *zap.Logger
	Tracer trace.Tracer
	Memory *pool.MemoryManager
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Name:                defaultName,
		ReadBufferSize:      DefaultReadBufferSize,
		WriteBufferSize:     DefaultWriteBufferSize,
		TCPNoDelay:          true,
		ReuseAddress:        true,
		Linger:              -1,
		ServerSocketTimeout: 0,
		ClientSocketTimeout: -1,
		ConnectionTimeout:   DefaultConnectionTimeout,
		UnbindTimeout:       DefaultUnbindTimeout,
		MaxReadAttempts:     DefaultMaxReadAttempts,
		Strategy:            WorkerStrategy,
	}
}

// normalize fills derived and collaborator defaults.
func (c *Config) normalize() {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = DefaultWriteBufferSize
	}
	if c.MaxReadAttempts <= 0 {
		c.MaxReadAttempts = DefaultMaxReadAttempts
	}
	if c.UnbindTimeout <= 0 {
		c.UnbindTimeout = DefaultUnbindTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.L().Named("tcp")
	}
	if c.Tracer == nil {
		c.Tracer = noop.NewTracerProvider().Tracer("hioload-nio/tcp")
	}
	if c.Memory == nil {
		c.Memory = pool.DefaultManager()
	}
}

func (c *Config) runnerCount() int {
	if c.Runners > 0 {
		return c.Runners
	}
	return concurrency.DefaultRunnerCount()
}

func (c *Config) workerCount(runners int) int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runners * 2
}

// Option customizes a Config.
type Option func(*Config)

// WithName sets the transport name reported to probes.
func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithReadBufferSize sets the per-connection read size.
func WithReadBufferSize(n int) Option {
	return func(c *Config) { c.ReadBufferSize = n }
}

// WithWriteBufferSize sets the per-connection write staging size.
func WithWriteBufferSize(n int) Option {
	return func(c *Config) { c.WriteBufferSize = n }
}

// WithTCPNoDelay toggles TCP_NODELAY.
func WithTCPNoDelay(on bool) Option {
	return func(c *Config) { c.TCPNoDelay = on }
}

// WithReuseAddress toggles SO_REUSEADDR.
func WithReuseAddress(on bool) Option {
	return func(c *Config) { c.ReuseAddress = on }
}

// WithKeepAlive toggles SO_KEEPALIVE.
func WithKeepAlive(on bool) Option {
	return func(c *Config) { c.KeepAlive = on }
}

// WithLinger sets SO_LINGER seconds; negative disables.
func WithLinger(seconds int) Option {
	return func(c *Config) { c.Linger = seconds }
}

// WithServerSocketTimeout sets the listener receive timeout.
func WithServerSocketTimeout(d time.Duration) Option {
	return func(c *Config) { c.ServerSocketTimeout = d }
}

// WithClientSocketTimeout sets the blocking I/O deadline for connections.
func WithClientSocketTimeout(d time.Duration) Option {
	return func(c *Config) { c.ClientSocketTimeout = d }
}

// WithConnectionTimeout bounds outbound connects.
func WithConnectionTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectionTimeout = d }
}

// WithUnbindTimeout bounds the wait for a listener close.
func WithUnbindTimeout(d time.Duration) Option {
	return func(c *Config) { c.UnbindTimeout = d }
}

// WithMaxReadAttempts sets the off-reactor read retry bound.
func WithMaxReadAttempts(n int) Option {
	return func(c *Config) { c.MaxReadAttempts = n }
}

// WithRunners sets the reactor count.
func WithRunners(n int) Option {
	return func(c *Config) { c.Runners = n }
}

// WithWorkers sets the thread pool size.
func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// WithPinnedRunners binds reactor threads to CPUs.
func WithPinnedRunners(on bool) Option {
	return func(c *Config) { c.PinRunners = on }
}

// WithBlocking makes blocking I/O the default for new connections.
func WithBlocking(on bool) Option {
	return func(c *Config) { c.Blocking = on }
}

// WithIOStrategy selects where processors run.
func WithIOStrategy(s IOStrategy) Option {
	return func(c *Config) { c.Strategy = s }
}

// WithProcessor installs the protocol processor for new connections.
func WithProcessor(p Processor) Option {
	return func(c *Config) { c.Processor = p }
}

// WithProbes appends monitoring probes.
func WithProbes(p ...api.Probe) Option {
	return func(c *Config) { c.Probes = append(c.Probes, p...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithTracer sets the tracer used for connect spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Config) { c.Tracer = t }
}

// WithMemoryManager sets the buffer allocator.
func WithMemoryManager(m *pool.MemoryManager) Option {
	return func(c *Config) { c.Memory = m }
}
