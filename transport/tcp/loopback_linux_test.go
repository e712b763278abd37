// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

//go:build linux
// +build linux

package tcp

import (
	"context"
	"io"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/core/buffer"
	"github.com/momentics/hioload-nio/fake"
)

func startedTransport(t *testing.T, opts ...Option) *Transport {
	t.Helper()
	tr := New(append([]Option{WithLogger(zaptest.NewLogger(t)), WithRunners(2)}, opts...)...)
	require.NoError(t, tr.Start())
	t.Cleanup(func() { _ = tr.Stop() })
	return tr
}

func dialTransport(t *testing.T, tr *Transport, addr string) *Connection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := tr.ConnectAddr(ctx, addr).Get(ctx)
	require.NoError(t, err)
	require.True(t, c.IsConnected())
	return c
}

func TestLoopback_StartStop(t *testing.T) {
	probe := &fake.Probe{}
	tr := New(WithLogger(zaptest.NewLogger(t)), WithRunners(3), WithName("life"), WithProbes(probe))
	require.NoError(t, tr.Start())
	assert.Equal(t, api.StateStarted, tr.State())
	assert.Equal(t, 3, tr.Runners())
	require.NotNil(t, tr.Executor())
	assert.Equal(t, 6, tr.Executor().NumWorkers())

	require.NoError(t, tr.Pause())
	require.NoError(t, tr.Resume())
	require.NoError(t, tr.Stop())
	assert.True(t, tr.IsStopped())
	assert.Zero(t, tr.Runners())
	assert.Nil(t, tr.Executor())
	assert.Equal(t, []string{"start:life", "pause:life", "resume:life", "stop:life"}, probe.Events())

	// a stopped transport can be started again
	require.NoError(t, tr.Start())
	require.NoError(t, tr.Stop())
}

func TestLoopback_BindBeforeStartListensOnStart(t *testing.T) {
	tr := New(WithLogger(zaptest.NewLogger(t)), WithRunners(1))
	sc, err := tr.Bind("127.0.0.1:0")
	require.NoError(t, err)
	assert.False(t, sc.IsListening())

	require.NoError(t, tr.Start())
	defer tr.Stop()
	assert.True(t, sc.IsListening())
	assert.NotNil(t, sc.Runner())
}

func TestLoopback_GatheredWriteMixedSegments(t *testing.T) {
	cb, all := compositeOf(
		segment{4096, false}, segment{4096, false},
		segment{8192, true}, segment{4096, true}, segment{4096, true},
	)
	require.Len(t, all, 24576)

	var (
		mu  sync.Mutex
		got []byte
	)
	received := make(chan struct{})
	sink := ProcessorFuncs{
		ReadReady: func(ctx context.Context, c *Connection) (bool, error) {
			buf, err := c.Transport().Read(ctx, c, nil)
			if err != nil {
				return false, err
			}
			if buf != nil {
				mu.Lock()
				got = append(got, buf.(*buffer.ByteBuffer).Bytes()...)
				if len(got) == len(all) {
					close(received)
				}
				mu.Unlock()
			}
			return true, nil
		},
	}
	tr := startedTransport(t, WithWriteBufferSize(8192), WithProcessor(sink))
	sc, err := tr.Bind("127.0.0.1:0")
	require.NoError(t, err)
	require.True(t, sc.IsListening())
	c := dialTransport(t, tr, sc.Addr().String())

	res, err := tr.GetWriter(true).Write(context.Background(), c, cb, nil).GetTimeout(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 24576, res.Written)
	assert.False(t, cb.HasRemaining())

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("bound connection did not receive the payload")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, all, got)
}

func TestLoopback_Echo(t *testing.T) {
	echo := ProcessorFuncs{
		ReadReady: func(ctx context.Context, c *Connection) (bool, error) {
			tr := c.Transport()
			buf, err := tr.Read(ctx, c, nil)
			if err != nil {
				return false, err
			}
			if buf == nil {
				return true, nil
			}
			if _, err := tr.GetWriter(true).Write(ctx, c, buf, nil).Get(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
	}
	probe := &fake.Probe{}
	tr := startedTransport(t, WithProcessor(echo), WithProbes(probe))
	sc, err := tr.Bind("127.0.0.1:0")
	require.NoError(t, err)
	require.True(t, sc.IsListening())

	conn, err := net.DialTimeout("tcp", sc.Addr().String(), 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	for _, msg := range []string{"ping", "a longer message over the wire", "x"} {
		_, err := conn.Write([]byte(msg))
		require.NoError(t, err)
		got := make([]byte, len(msg))
		_, err = io.ReadFull(conn, got)
		require.NoError(t, err)
		assert.Equal(t, msg, string(got))
	}
	assert.Eventually(t, func() bool { return probe.Count("accept:") == 1 }, time.Second, 10*time.Millisecond)

	// the peer closing is an end of stream that closes the connection
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return probe.Count("close:") == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestLoopback_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	tr := startedTransport(t)
	_, err = tr.ConnectAddr(context.Background(), addr).GetTimeout(5 * time.Second)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
}

func TestLoopback_ConnectContextCanceled(t *testing.T) {
	// the read end of a pipe never reports connect readiness
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	tr := startedTransport(t)
	ff := newFakeFactory()
	ff.dialFD = p[0]
	tr.factory = ff

	ctx, cancel := context.WithCancel(context.Background())
	f := tr.ConnectAddr(ctx, "127.0.0.1:9")
	assert.Never(t, f.IsDone, 50*time.Millisecond, 5*time.Millisecond)

	cancel()
	_, err := f.GetTimeout(time.Second)
	require.ErrorIs(t, err, context.Canceled)

	dialed := ff.dialedChannels()
	require.Len(t, dialed, 1)
	assert.Eventually(t, dialed[0].Closed, time.Second, 5*time.Millisecond)
}

func TestLoopback_StalledProcessorDoesNotStallAccepts(t *testing.T) {
	hold := make(chan struct{})
	stalled := make(chan struct{})
	var first sync.Once
	proc := ProcessorFuncs{
		ReadReady: func(ctx context.Context, c *Connection) (bool, error) {
			first.Do(func() {
				close(stalled)
				<-hold
			})
			if _, err := c.Transport().Read(ctx, c, nil); err != nil {
				return false, err
			}
			return true, nil
		},
	}
	probe := &fake.Probe{}
	tr := startedTransport(t, WithRunners(1), WithWorkers(1), WithProcessor(proc), WithProbes(probe))
	var released sync.Once
	release := func() { released.Do(func() { close(hold) }) }
	t.Cleanup(release)

	sc, err := tr.Bind("127.0.0.1:0")
	require.NoError(t, err)
	dial := func() net.Conn {
		conn, err := net.DialTimeout("tcp", sc.Addr().String(), time.Second)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	c1 := dial()
	_, err = c1.Write([]byte("a"))
	require.NoError(t, err)
	select {
	case <-stalled:
	case <-time.After(2 * time.Second):
		t.Fatal("processor never ran")
	}

	c2 := dial()
	_, err = c2.Write([]byte("b"))
	require.NoError(t, err)
	dial()
	assert.Eventually(t, func() bool { return probe.Count("accept:") == 3 }, time.Second, 5*time.Millisecond)

	release()
	assert.Eventually(t, func() bool { return probe.Count("read:") >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestLoopback_ClosedConnectionKeepsOffReusedDescriptor(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	peers := make(chan net.Conn, 2)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			peers <- conn
		}
	}()
	nextPeer := func() net.Conn {
		select {
		case conn := <-peers:
			t.Cleanup(func() { conn.Close() })
			return conn
		case <-time.After(5 * time.Second):
			t.Fatal("no peer accepted")
			return nil
		}
	}

	tr := startedTransport(t)
	a := dialTransport(t, tr, ln.Addr().String())
	nextPeer()
	_, err = a.CloseAsync().GetTimeout(time.Second)
	require.NoError(t, err)

	b := dialTransport(t, tr, ln.Addr().String())
	peerB := nextPeer()
	t.Logf("closed fd %d, new fd %d", a.fd, b.fd)

	_, err = tr.Write(context.Background(), a, buffer.Wrap([]byte("meant-for-a")), nil)
	var werr *api.WriteError
	require.ErrorAs(t, err, &werr)
	assert.ErrorIs(t, err, api.ErrConnectionClosed)
	_, err = tr.Read(context.Background(), a, nil)
	assert.ErrorIs(t, err, api.ErrConnectionClosed)
	_, err = a.Channel().Write([]byte("raw"))
	assert.ErrorIs(t, err, api.ErrConnectionClosed)

	require.NoError(t, peerB.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	n, err := peerB.Read(make([]byte, 64))
	assert.Zero(t, n)
	var nerr net.Error
	require.ErrorAs(t, err, &nerr)
	assert.True(t, nerr.Timeout())
}

func TestLoopback_StopWithHungListenerClose(t *testing.T) {
	tr, _, logs := observedTransport(t, WithRunners(3), WithUnbindTimeout(100*time.Millisecond))
	tr.factory = defaultFactory()
	require.NoError(t, tr.Start())

	var bound []*ServerConnection
	for i := 0; i < 3; i++ {
		sc, err := tr.Bind("127.0.0.1:0")
		require.NoError(t, err)
		require.True(t, sc.IsListening())
		bound = append(bound, sc)
	}
	assert.NotSame(t, bound[0].Runner(), bound[1].Runner())
	assert.NotSame(t, bound[1].Runner(), bound[2].Runner())
	bound[1].beforeClose = func() { time.Sleep(500 * time.Millisecond) }

	require.NoError(t, tr.Stop())
	assert.True(t, tr.IsStopped())
	assert.Empty(t, tr.ServerConnections())

	warned := logs.FilterMessage("error unbinding connection").All()
	require.Len(t, warned, 1)
	assert.Equal(t, bound[1].ID(), warned[0].ContextMap()["conn"])

	for _, i := range []int{0, 2} {
		_, err := net.DialTimeout("tcp", bound[i].Addr().String(), time.Second)
		assert.Error(t, err, "listener %d still accepting", i)
	}
}
