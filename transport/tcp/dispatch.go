// File: transport/tcp/dispatch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// IOEventDispatcher: turns reactor readiness into I/O events, routes accept
// and connect internally and hands read/write readiness to the protocol
// processor, on the reactor or on the thread pool.

package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"

	"go.uber.org/zap"

	"github.com/momentics/hioload-nio/api"
)

// FireIOEvent routes ev to ep. Accept and connect are handled by the
// connection itself; every other event executes the connection's processor,
// whose boolean result selects Register or Deregister. Failures are
// returned as *api.IOError carrying the connection and event.
func (t *Transport) FireIOEvent(ctx context.Context, ev api.IOEvent, ep Endpoint) (reg api.IOEventReg, err error) {
	defer func() {
		if p := recover(); p != nil {
			reg, err = api.Deregister, fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			err = t.wrapDispatchError(ep, ev, err)
		}
	}()

	switch ev {
	case api.EventServerAccept:
		if err := ep.onAccept(ctx); err != nil {
			return api.Deregister, err
		}
		return api.Register, nil
	case api.EventClientConnected:
		if err := ep.onConnect(ctx); err != nil {
			return api.Deregister, err
		}
		return api.Register, nil
	}

	keep, err := ep.execute(ctx, ev)
	if err != nil {
		return api.Deregister, err
	}
	if keep {
		return api.Register, nil
	}
	return api.Deregister, nil
}

func (t *Transport) wrapDispatchError(ep Endpoint, ev api.IOEvent, err error) error {
	log := t.logger()
	var ioErr *api.IOError
	if errors.As(err, &ioErr) {
		log.Debug("i/o failure on fireIOEvent", zap.String("conn", ep.ID()), zap.Stringer("event", ev), zap.Error(err))
		return err
	}
	if isIOFailure(err) {
		log.Debug("i/o failure on fireIOEvent", zap.String("conn", ep.ID()), zap.Stringer("event", ev), zap.Error(err))
	} else {
		log.Warn("unexpected error on fireIOEvent", zap.String("conn", ep.ID()), zap.Stringer("event", ev), zap.Error(err))
	}
	return &api.IOError{Conn: ep.ID(), Event: ev, Err: err}
}

func isIOFailure(err error) bool {
	var (
		errno syscall.Errno
		werr  *api.WriteError
	)
	return errors.Is(err, io.EOF) ||
		errors.Is(err, api.ErrConnectionClosed) ||
		errors.As(err, &errno) ||
		errors.As(err, &werr)
}

// onReady is the reactor callback for both connection kinds.
func (t *Transport) onReady(ctx context.Context, ep Endpoint, ready api.Interest) {
	if t.State() == api.StatePaused {
		if held := ready &^ api.InterestError; held != 0 {
			t.park(ep, held)
		}
		return
	}
	if ready&api.InterestAccept != 0 {
		t.runEvent(ctx, api.EventServerAccept, ep)
	}
	if ready&api.InterestConnect != 0 {
		t.runEvent(ctx, api.EventClientConnected, ep)
	}
	if ready&api.InterestRead != 0 {
		t.schedule(ctx, api.EventRead, ep)
	}
	if ready&api.InterestWrite != 0 {
		t.schedule(ctx, api.EventWrite, ep)
	}
}

// schedule runs a read/write event where the I/O strategy says.
func (t *Transport) schedule(ctx context.Context, ev api.IOEvent, ep Endpoint) {
	b := t.executor.Load()
	if t.config().Strategy == SameThreadStrategy || b == nil {
		t.runEvent(ctx, ev, ep)
		return
	}
	err := b.Submit(func(wctx context.Context) { t.runEvent(wctx, ev, ep) })
	if err != nil {
		t.logger().Debug("executor rejected event, running on reactor",
			zap.String("conn", ep.ID()), zap.Stringer("event", ev), zap.Error(err))
		t.runEvent(ctx, ev, ep)
	}
}

func (t *Transport) runEvent(ctx context.Context, ev api.IOEvent, ep Endpoint) {
	reg, err := t.FireIOEvent(ctx, ev, ep)
	if err != nil {
		t.probeConn(func(p api.ConnectionProbe) { p.OnError(ep.ID(), err) })
		ep.closeAsync()
		return
	}
	if reg != api.Register {
		return
	}
	interest := ev.Interest()
	if ev == api.EventClientConnected {
		interest = api.InterestRead
	}
	if err := ep.rearm(interest); err != nil && !errors.Is(err, api.ErrConnectionClosed) {
		t.logger().Debug("re-arm failed", zap.String("conn", ep.ID()), zap.Stringer("event", ev), zap.Error(err))
	}
}

// acceptChannel configures an accepted channel, assigns it to a reactor and
// registers it for reads.
func (t *Transport) acceptChannel(ctx context.Context, sc *ServerConnection, ch SocketChannel) {
	c := t.newConnection(ch)
	c.parent = sc
	c.connected.Store(true)
	newChannelConfigurer(t.config()).Configure(t.factory.Options(ch.FD()))

	p := t.runners.Load()
	if p == nil {
		c.closeAsync()
		return
	}
	r := p.Next()
	c.attach(r)
	t.probeConn(func(pr api.ConnectionProbe) { pr.OnAccept(c.id) })

	if err := c.Processor().OnAccepted(ctx, c); err != nil {
		t.logger().Warn("accepted connection rejected", zap.String("conn", c.id), zap.Error(err))
		c.closeAsync()
		return
	}
	if err := r.Register(c.fd, api.InterestRead, c); err != nil {
		t.logger().Warn("can not register accepted connection", zap.String("conn", c.id), zap.Error(err))
		c.closeAsync()
	}
}
