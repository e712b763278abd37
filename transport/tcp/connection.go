// File: transport/tcp/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connections: a connected stream socket and a listening server socket,
// sharing identity, reactor assignment and close handling.

package tcp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/reactor"
)

// Endpoint is anything the dispatcher can route an event to.
type Endpoint interface {
	ID() string
	onAccept(ctx context.Context) error
	onConnect(ctx context.Context) error
	execute(ctx context.Context, ev api.IOEvent) (bool, error)
	rearm(interest api.Interest) error
	closeAsync() *Future[struct{}]
}

// endpoint is the state shared by both connection kinds.
type endpoint struct {
	id     string
	fd     int
	t      *Transport
	runner atomic.Pointer[reactor.Runner]
	closed atomic.Bool
	ref    fdRef
	closeF *Future[struct{}]
	finish func()

	// beforeClose runs on the closing goroutine ahead of the channel close.
	beforeClose func()
}

func (e *endpoint) init(t *Transport, fd int) {
	e.id = uuid.NewString()
	e.fd = fd
	e.t = t
	e.closeF = newFuture[struct{}](nil)
}

// ID returns the connection identifier.
func (e *endpoint) ID() string { return e.id }

// IsOpen reports whether close has not been requested.
func (e *endpoint) IsOpen() bool { return !e.closed.Load() }

// Runner returns the reactor the connection is assigned to, if any.
func (e *endpoint) Runner() *reactor.Runner { return e.runner.Load() }

func (e *endpoint) attach(r *reactor.Runner) { e.runner.Store(r) }

func (e *endpoint) rearm(interest api.Interest) error {
	r := e.runner.Load()
	if r == nil {
		return nil
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()
	return r.Enable(e.fd, interest)
}

// acquire pins the channel for one operation on it. It fails with
// api.ErrConnectionClosed once close was requested.
func (e *endpoint) acquire() error {
	if e.closed.Load() || !e.ref.incref() {
		return api.ErrConnectionClosed
	}
	return nil
}

// release drops a pin taken by acquire. The last pin of a closing endpoint
// closes the channel.
func (e *endpoint) release() {
	if e.ref.decref() {
		e.finish()
	}
}

// shutdown deregisters the channel from its reactor, then closes it and
// runs after once no operation holds it any more. Only the first call has
// effect.
func (e *endpoint) shutdown(closeChannel func() error, after func(error)) *Future[struct{}] {
	if !e.closed.CompareAndSwap(false, true) {
		return e.closeF
	}
	e.finish = func() {
		if e.beforeClose != nil {
			e.beforeClose()
		}
		err := closeChannel()
		if after != nil {
			after(err)
		}
		e.closeF.complete(struct{}{}, err)
	}
	// held until the descriptor has left the reactor
	e.ref.incref()
	e.ref.markClosing()
	if r := e.runner.Load(); r != nil {
		r.Deregister(e.fd, e.release)
	} else {
		go e.release()
	}
	return e.closeF
}

func (e *endpoint) onAccept(context.Context) error  { return api.ErrNotSupported }
func (e *endpoint) onConnect(context.Context) error { return api.ErrNotSupported }

func (e *endpoint) execute(context.Context, api.IOEvent) (bool, error) {
	return false, api.ErrNotSupported
}

// Connection is a connected TCP socket, accepted or outbound.
type Connection struct {
	endpoint
	ch SocketChannel

	readSize  atomic.Int64
	writeSize atomic.Int64
	blocking  atomic.Bool
	connected atomic.Bool

	procMu    sync.RWMutex
	processor Processor

	reads  *asyncQueue
	writes *asyncQueue

	parent   *ServerConnection
	connectF *Future[*Connection]
}

var (
	_ Endpoint        = (*Connection)(nil)
	_ reactor.Handler = (*Connection)(nil)
)

func (t *Transport) newConnection(ch SocketChannel) *Connection {
	cfg := t.config()
	c := &Connection{
		ch:        ch,
		processor: cfg.Processor,
		reads:     newAsyncQueue(),
		writes:    newAsyncQueue(),
	}
	c.init(t, ch.FD())
	if c.processor == nil {
		c.processor = StandaloneProcessor{}
	}
	c.readSize.Store(int64(cfg.ReadBufferSize))
	c.writeSize.Store(int64(cfg.WriteBufferSize))
	c.blocking.Store(cfg.Blocking)
	return c
}

func (c *Connection) String() string { return "tcp-conn(" + c.id + ")" }

// Transport returns the owning transport.
func (c *Connection) Transport() *Transport { return c.t }

// Channel exposes the underlying socket.
func (c *Connection) Channel() SocketChannel { return c.ch }

// Server returns the listener that accepted c, nil for outbound connections.
func (c *Connection) Server() *ServerConnection { return c.parent }

func (c *Connection) LocalAddr() net.Addr  { return c.ch.LocalAddr() }
func (c *Connection) RemoteAddr() net.Addr { return c.ch.RemoteAddr() }

func (c *Connection) ReadBufferSize() int      { return int(c.readSize.Load()) }
func (c *Connection) SetReadBufferSize(n int)  { c.readSize.Store(int64(n)) }
func (c *Connection) WriteBufferSize() int     { return int(c.writeSize.Load()) }
func (c *Connection) SetWriteBufferSize(n int) { c.writeSize.Store(int64(n)) }

// IsBlocking reports which reader/writer GetReaderFor selects.
func (c *Connection) IsBlocking() bool         { return c.blocking.Load() }
func (c *Connection) ConfigureBlocking(b bool) { c.blocking.Store(b) }

// IsConnected reports whether the connect (or accept) completed.
func (c *Connection) IsConnected() bool { return c.connected.Load() }

// Processor returns the protocol processor.
func (c *Connection) Processor() Processor {
	c.procMu.RLock()
	defer c.procMu.RUnlock()
	return c.processor
}

// SetProcessor replaces the protocol processor; nil restores standalone mode.
func (c *Connection) SetProcessor(p Processor) {
	if p == nil {
		p = StandaloneProcessor{}
	}
	c.procMu.Lock()
	c.processor = p
	c.procMu.Unlock()
}

// EnableIOEvent re-arms monitoring for ev, e.g. after a partial write.
func (c *Connection) EnableIOEvent(ev api.IOEvent) error {
	return c.rearm(ev.Interest())
}

// DisableIOEvent stops monitoring for ev.
func (c *Connection) DisableIOEvent(ev api.IOEvent) error {
	r := c.runner.Load()
	if r == nil {
		return nil
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	return r.Disable(c.fd, ev.Interest())
}

// Close requests an asynchronous close. Pending queued reads and writes fail
// with api.ErrConnectionClosed. Use CloseAsync to wait for completion.
func (c *Connection) Close() error {
	f := c.CloseAsync()
	if r, ok := f.Result(); ok {
		return r.Err
	}
	return nil
}

// CloseAsync requests the close and returns its completion handle.
func (c *Connection) CloseAsync() *Future[struct{}] { return c.closeAsync() }

func (c *Connection) closeAsync() *Future[struct{}] {
	return c.shutdown(c.ch.Close, func(err error) {
		if err != nil {
			c.t.logger().Debug("channel close failed", zap.String("conn", c.id), zap.Error(err))
		}
		c.reads.closeAll(api.ErrConnectionClosed)
		c.writes.closeAll(api.ErrConnectionClosed)
		if c.connectF != nil {
			c.connectF.fail(api.ErrConnectionClosed)
		}
		c.t.probeConn(func(p api.ConnectionProbe) { p.OnClose(c.id) })
	})
}

// HandleReady is the reactor callback.
func (c *Connection) HandleReady(ctx context.Context, ready api.Interest) {
	c.t.onReady(ctx, c, ready)
}

// HandleStop closes the connection when its reactor stops.
func (c *Connection) HandleStop() { c.closeAsync() }

func (c *Connection) onConnect(ctx context.Context) error {
	if pc, ok := c.ch.(pendingConnect); ok {
		if err := c.finishConnect(pc); err != nil {
			if c.connectF != nil {
				c.connectF.fail(err)
			}
			return err
		}
	}
	c.connected.Store(true)
	c.t.probeConn(func(p api.ConnectionProbe) { p.OnConnect(c.id) })
	if err := c.Processor().OnConnected(ctx, c); err != nil {
		if c.connectF != nil {
			c.connectF.fail(err)
		}
		return err
	}
	if c.connectF != nil {
		c.connectF.complete(c, nil)
	}
	return nil
}

func (c *Connection) finishConnect(pc pendingConnect) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	return pc.FinishConnect()
}

// execute prefers queued asynchronous requests over the processor.
func (c *Connection) execute(ctx context.Context, ev api.IOEvent) (bool, error) {
	switch ev {
	case api.EventRead:
		if c.reads.pending() {
			return c.t.asyncReader.process(ctx, c)
		}
		return c.Processor().OnReadReady(ctx, c)
	case api.EventWrite:
		if c.writes.pending() {
			return c.t.asyncWriter.process(ctx, c)
		}
		return c.Processor().OnWriteReady(ctx, c)
	default:
		return false, api.ErrNotSupported
	}
}

func (c *Connection) onRead(n int) {
	if n > 0 {
		c.t.probeConn(func(p api.ConnectionProbe) { p.OnRead(c.id, n) })
	}
}

func (c *Connection) onWrite(n int) {
	if n > 0 {
		c.t.probeConn(func(p api.ConnectionProbe) { p.OnWrite(c.id, n) })
	}
}

// ServerConnection is a listening socket tracked by the registry.
type ServerConnection struct {
	endpoint
	ch        ServerChannel
	backlog   int
	listening atomic.Bool
}

var (
	_ Endpoint        = (*ServerConnection)(nil)
	_ reactor.Handler = (*ServerConnection)(nil)
)

func (t *Transport) newServerConnection(ch ServerChannel, backlog int) *ServerConnection {
	s := &ServerConnection{ch: ch, backlog: backlog}
	s.init(t, ch.FD())
	return s
}

func (s *ServerConnection) String() string { return "tcp-server(" + s.id + ")" }

// Addr returns the bound address.
func (s *ServerConnection) Addr() net.Addr { return s.ch.Addr() }

// Backlog returns the listen backlog.
func (s *ServerConnection) Backlog() int { return s.backlog }

// IsListening reports whether the listener is registered for accepts.
func (s *ServerConnection) IsListening() bool { return s.listening.Load() }

// listen registers the listener with a reactor for accept readiness.
func (s *ServerConnection) listen() error {
	if s.listening.Load() {
		return nil
	}
	if s.closed.Load() {
		return api.ErrConnectionClosed
	}
	p := s.t.runners.Load()
	if p == nil {
		return api.ErrTransportStopped
	}
	r := p.Next()
	s.attach(r)
	if err := r.Register(s.fd, api.InterestAccept, s); err != nil {
		s.runner.Store(nil)
		return err
	}
	s.listening.Store(true)
	return nil
}

// onAccept drains the accept backlog.
func (s *ServerConnection) onAccept(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	for {
		ch, err := s.ch.Accept()
		if err != nil {
			return err
		}
		if ch == nil {
			return nil
		}
		s.t.acceptChannel(ctx, s, ch)
	}
}

// Close requests an asynchronous close and drops the listener from the
// registry.
func (s *ServerConnection) Close() error {
	f := s.closeAsync()
	if r, ok := f.Result(); ok {
		return r.Err
	}
	return nil
}

func (s *ServerConnection) closeAsync() *Future[struct{}] {
	s.t.servers.Remove(s.id)
	return s.shutdown(s.ch.Close, func(err error) {
		s.listening.Store(false)
		if err != nil {
			s.t.logger().Debug("listener close failed", zap.String("conn", s.id), zap.Error(err))
		}
		s.t.probeConn(func(p api.ConnectionProbe) { p.OnClose(s.id) })
	})
}

// HandleReady is the reactor callback.
func (s *ServerConnection) HandleReady(ctx context.Context, ready api.Interest) {
	s.t.onReady(ctx, s, ready)
}

// HandleStop marks the listener idle; the registry still owns it.
func (s *ServerConnection) HandleStop() {
	s.listening.Store(false)
	s.runner.Store(nil)
}
