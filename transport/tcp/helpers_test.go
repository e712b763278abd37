// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package tcp

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/momentics/hioload-nio/core/buffer"
	"github.com/momentics/hioload-nio/fake"
	"github.com/momentics/hioload-nio/internal/concurrency"
	"github.com/momentics/hioload-nio/pool"
)

type fakeListener struct{ *fake.Listener }

func (l fakeListener) Accept() (SocketChannel, error) {
	ch, err := l.Listener.Accept()
	if ch == nil {
		return nil, err
	}
	return ch, err
}

// fakeFactory hands out scripted sockets instead of OS ones.
type fakeFactory struct {
	mu        sync.Mutex
	fd        int
	listeners []*fake.Listener
	dialed    []*fake.Channel
	opts      *fake.SocketOptions
	delays    map[int]time.Duration // listener index -> close delay

	// dialFD, when set, is reported by dialed channels whose connect then
	// stays in progress.
	dialFD int
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{fd: 100, opts: fake.NewSocketOptions(), delays: map[int]time.Duration{}}
}

func (f *fakeFactory) Listen(addr *net.TCPAddr, _ int, _ bool, _ time.Duration) (ServerChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fd++
	l := fake.NewListener(f.fd, addr)
	if d, ok := f.delays[len(f.listeners)]; ok {
		l.SetCloseDelay(d)
	}
	f.listeners = append(f.listeners, l)
	return fakeListener{l}, nil
}

func (f *fakeFactory) Dial(_, _ *net.TCPAddr, _ bool) (pendingConnect, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialFD != 0 {
		ch := fake.NewChannel(f.dialFD)
		f.dialed = append(f.dialed, ch)
		return ch, false, nil
	}
	f.fd++
	ch := fake.NewChannel(f.fd)
	f.dialed = append(f.dialed, ch)
	return ch, true, nil
}

func (f *fakeFactory) dialedChannels() []*fake.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fake.Channel{}, f.dialed...)
}

func (f *fakeFactory) Options(int) SocketOptions { return f.opts }

func newTestTransport(t *testing.T, opts ...Option) (*Transport, *fakeFactory) {
	t.Helper()
	all := append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	tr := New(all...)
	ff := newFakeFactory()
	tr.factory = ff
	return tr, ff
}

func observedTransport(t *testing.T, opts ...Option) (*Transport, *fakeFactory, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	tr, ff := newTestTransport(t, append(opts, WithLogger(zap.New(core)))...)
	return tr, ff, logs
}

func newFakeConn(tr *Transport, fd int) (*Connection, *fake.Channel) {
	ch := fake.NewChannel(fd)
	return tr.newConnection(ch), ch
}

// selectorCtx marks the caller as a reactor goroutine.
func selectorCtx() context.Context {
	return concurrency.WithWorker(context.Background(),
		&concurrency.Worker{ID: 0, Selector: true, Cache: pool.NewThreadCache(nil)})
}

// workerCtx marks the caller as a worker owning cache.
func workerCtx(cache *pool.ThreadCache) context.Context {
	return concurrency.WithWorker(context.Background(), &concurrency.Worker{ID: 1, Cache: cache})
}

func pattern(n, seed int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte((i + seed) % 251)
	}
	return p
}

type segment struct {
	size   int
	direct bool
}

// compositeOf builds a composite over consecutive slices of one pattern and
// returns the pattern.
func compositeOf(specs ...segment) (*buffer.CompositeBuffer, []byte) {
	total := 0
	for _, s := range specs {
		total += s.size
	}
	all := pattern(total, 7)
	cb := buffer.NewComposite()
	off := 0
	for _, s := range specs {
		part := append([]byte{}, all[off:off+s.size]...)
		off += s.size
		if s.direct {
			cb.Append(buffer.New(part, true, nil))
		} else {
			cb.Append(buffer.Wrap(part))
		}
	}
	return cb, all
}
