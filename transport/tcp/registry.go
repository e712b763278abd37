// File: transport/tcp/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listening-connection registry. A server connection is registered only
// once its channel is open and leaves the registry before its channel is
// closed.

package tcp

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/momentics/hioload-nio/api"
)

// Bind listens on addr with the default backlog of 4096.
func (t *Transport) Bind(addr string) (*ServerConnection, error) {
	return t.BindBacklog(addr, DefaultBacklog)
}

// BindPort listens on every interface at port.
func (t *Transport) BindPort(port int) (*ServerConnection, error) {
	return t.Bind(net.JoinHostPort("", strconv.Itoa(port)))
}

// BindHost listens on host:port with a backlog of 50.
func (t *Transport) BindHost(host string, port int) (*ServerConnection, error) {
	return t.BindHostBacklog(host, port, DefaultHostBacklog)
}

// BindHostBacklog listens on host:port.
func (t *Transport) BindHostBacklog(host string, port, backlog int) (*ServerConnection, error) {
	return t.BindBacklog(net.JoinHostPort(host, strconv.Itoa(port)), backlog)
}

// BindBacklog opens a listening channel on addr and registers it. Unless
// the transport is stopped it starts accepting immediately.
func (t *Transport) BindBacklog(addr string, backlog int) (*ServerConnection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	cfg := t.config()
	ch, err := t.factory.Listen(tcpAddr, backlog, cfg.ReuseAddress, cfg.ServerSocketTimeout)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	sc := t.newServerConnection(ch, backlog)
	t.servers.Set(sc.ID(), sc)

	if !t.IsStopped() {
		if err := sc.listen(); err != nil {
			t.servers.Remove(sc.ID())
			_ = ch.Close()
			return nil, fmt.Errorf("listen %s: %w", addr, err)
		}
	}
	t.logger().Debug("bound", zap.String("conn", sc.ID()), zap.Stringer("addr", ch.Addr()), zap.Int("backlog", backlog))
	return sc, nil
}

// Unbind closes sc and drops it from the registry. An sc that is not
// registered is ignored. A close that is not acknowledged within the unbind
// timeout is logged and abandoned.
func (t *Transport) Unbind(sc *ServerConnection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unbindLocked(sc)
}

func (t *Transport) unbindLocked(sc *ServerConnection) {
	if sc == nil {
		return
	}
	if _, ok := t.servers.Pop(sc.ID()); !ok {
		return
	}
	f := sc.closeAsync()
	defer f.MarkForRecycle()
	if _, err := f.GetTimeout(t.config().UnbindTimeout); err != nil {
		if errors.Is(err, api.ErrOperationTimeout) {
			err = api.ErrUnbindTimeout
		}
		t.logger().Warn("error unbinding connection", zap.String("conn", sc.ID()), zap.Error(err))
	}
}

// UnbindAll closes every registered listener. Failures are logged per
// connection; the registry is always empty afterwards.
func (t *Transport) UnbindAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unbindAllLocked()
}

func (t *Transport) unbindAllLocked() {
	for _, sc := range t.servers.Items() {
		func() {
			defer func() {
				if p := recover(); p != nil {
					t.logger().Debug("exception occurred when closing server connection",
						zap.String("conn", sc.ID()), zap.Any("panic", p))
				}
			}()
			t.unbindLocked(sc)
		}()
	}
	t.servers.Clear()
}

// ServerConnections returns the registered listeners.
func (t *Transport) ServerConnections() []*ServerConnection {
	items := t.servers.Items()
	out := make([]*ServerConnection, 0, len(items))
	for _, sc := range items {
		out = append(out, sc)
	}
	return out
}
