// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"net"
	"sync"
	"time"
)

// Listener is a scripted listening socket.
type Listener struct {
	mu       sync.Mutex
	fd       int
	addr     net.Addr
	pending  []*Channel
	closed   bool
	closeFor time.Duration
}

// NewListener creates a listener reporting fd and addr.
func NewListener(fd int, addr net.Addr) *Listener {
	return &Listener{fd: fd, addr: addr}
}

// Enqueue makes ch the next accepted channel.
func (l *Listener) Enqueue(ch *Channel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, ch)
}

// SetCloseDelay makes Close take d.
func (l *Listener) SetCloseDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeFor = d
}

// Accept returns the next enqueued channel, or nil when none is pending.
func (l *Listener) Accept() (*Channel, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, nil
	}
	ch := l.pending[0]
	l.pending = l.pending[1:]
	return ch, nil
}

func (l *Listener) Close() error {
	l.mu.Lock()
	d := l.closeFor
	l.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

// Closed reports whether Close completed.
func (l *Listener) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Listener) FD() int        { return l.fd }
func (l *Listener) Addr() net.Addr { return l.addr }
