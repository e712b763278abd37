// File: transport/tcp/connector.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Outbound connect. Every call shape funnels into ConnectWith; the reactor
// signals completion through a connect-readiness event.

package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/momentics/hioload-nio/api"
)

// Connect connects to host:port.
func (t *Transport) Connect(ctx context.Context, host string, port int) *Future[*Connection] {
	return t.ConnectWith(ctx, net.JoinHostPort(host, strconv.Itoa(port)), "", nil)
}

// ConnectAddr connects to a "host:port" address.
func (t *Transport) ConnectAddr(ctx context.Context, remote string) *Future[*Connection] {
	return t.ConnectWith(ctx, remote, "", nil)
}

// ConnectLocal connects to remote from the local address.
func (t *Transport) ConnectLocal(ctx context.Context, remote, local string) *Future[*Connection] {
	return t.ConnectWith(ctx, remote, local, nil)
}

// ConnectWith opens a channel to remote, optionally bound to local, and
// completes the returned future (and h, if set) once the connect finished,
// failed, timed out or ctx ended.
func (t *Transport) ConnectWith(ctx context.Context, remote, local string, h api.CompletionHandler[*Connection]) *Future[*Connection] {
	f := newFuture(h)
	cfg := t.config()

	_, span := cfg.Tracer.Start(ctx, "tcp.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("net.peer.address", remote)))
	f.onComplete(func(c *Connection, err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if c != nil && c.LocalAddr() != nil {
			span.SetAttributes(attribute.String("net.sock.host.addr", c.LocalAddr().String()))
		}
		span.End()
	})

	p := t.runners.Load()
	if s := t.State(); p == nil || (s != api.StateStarted && s != api.StatePaused) {
		f.fail(api.NewError(api.ErrCodeInvalidState, "transport is not started").
			WithContext("state", s.String()))
		return f
	}

	raddr, err := net.ResolveTCPAddr("tcp", remote)
	if err != nil {
		f.fail(fmt.Errorf("connect %s: %w", remote, err))
		return f
	}
	var laddr *net.TCPAddr
	if local != "" {
		if laddr, err = net.ResolveTCPAddr("tcp", local); err != nil {
			f.fail(fmt.Errorf("connect %s: local %s: %w", remote, local, err))
			return f
		}
	}

	ch, _, err := t.factory.Dial(raddr, laddr, cfg.ReuseAddress)
	if err != nil {
		f.fail(err)
		return f
	}
	c := t.newConnection(ch)
	c.connectF = f
	newChannelConfigurer(cfg).Configure(t.factory.Options(ch.FD()))

	r := p.Next()
	c.attach(r)
	// an immediately connected socket reports write readiness at once, so
	// both outcomes complete through the reactor
	if err := r.Register(c.fd, api.InterestConnect, c); err != nil {
		f.fail(err)
		c.closeAsync()
		return f
	}

	if cfg.ConnectionTimeout > 0 {
		timer := time.AfterFunc(cfg.ConnectionTimeout, func() {
			if f.fail(fmt.Errorf("connect %s: %w", remote, api.ErrOperationTimeout)) {
				c.closeAsync()
			}
		})
		f.onComplete(func(*Connection, error) { timer.Stop() })
	}
	stop := context.AfterFunc(ctx, func() {
		if f.fail(ctx.Err()) {
			c.closeAsync()
		}
	})
	f.onComplete(func(*Connection, error) { stop() })

	t.logger().Debug("connecting", zap.String("conn", c.id), zap.String("remote", remote))
	return f
}
