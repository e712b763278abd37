// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package tcp

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/core/buffer"
)

func TestFDRef_IdleClose(t *testing.T) {
	var r fdRef
	first, idle := r.markClosing()
	assert.True(t, first)
	assert.True(t, idle)
	assert.False(t, r.incref())

	first, idle = r.markClosing()
	assert.False(t, first)
	assert.False(t, idle)
}

func TestFDRef_LastReferenceReleases(t *testing.T) {
	var r fdRef
	require.True(t, r.incref())
	require.True(t, r.incref())
	assert.Equal(t, 2, r.refs())

	first, idle := r.markClosing()
	assert.True(t, first)
	assert.False(t, idle)
	assert.True(t, r.closing())
	assert.False(t, r.incref())

	assert.False(t, r.decref())
	assert.True(t, r.decref())
	assert.Zero(t, r.refs())
}

func TestFDRef_ConcurrentCloseReleasesOnce(t *testing.T) {
	for round := 0; round < 50; round++ {
		var (
			r        fdRef
			releases atomic.Int32
			wg       sync.WaitGroup
		)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					if !r.incref() {
						return
					}
					if r.decref() {
						releases.Add(1)
					}
				}
			}()
		}
		if _, idle := r.markClosing(); idle {
			releases.Add(1)
		}
		wg.Wait()
		assert.EqualValues(t, 1, releases.Load(), "round %d", round)
	}
}

func TestConnection_ClosedRejectsIO(t *testing.T) {
	tr, _ := newTestTransport(t)
	c, ch := newFakeConn(tr, 3)
	ch.Feed([]byte("late"))
	_, err := c.CloseAsync().GetTimeout(time.Second)
	require.NoError(t, err)

	_, err = tr.Write(context.Background(), c, buffer.New(pattern(8, 0), true, nil), nil)
	var werr *api.WriteError
	require.ErrorAs(t, err, &werr)
	assert.ErrorIs(t, err, api.ErrConnectionClosed)
	assert.Empty(t, ch.WriteCalls())

	_, err = tr.Read(context.Background(), c, nil)
	assert.ErrorIs(t, err, api.ErrConnectionClosed)
	assert.Zero(t, ch.ReadCalls())
}

func TestConnection_CloseWaitsForWriteInFlight(t *testing.T) {
	tr, _ := newTestTransport(t)
	c, ch := newFakeConn(tr, 3)
	gate := make(chan struct{})
	ch.HoldWrites(gate)

	wrote := make(chan int, 1)
	go func() {
		n, _ := tr.Write(context.Background(), c, buffer.New(pattern(8, 0), true, nil), nil)
		wrote <- n
	}()
	require.Eventually(t, func() bool { return c.ref.refs() == 1 }, time.Second, time.Millisecond)

	f := c.CloseAsync()
	assert.False(t, c.IsOpen())
	assert.Never(t, func() bool { return ch.Closed() || f.IsDone() }, 50*time.Millisecond, 5*time.Millisecond)

	close(gate)
	select {
	case n := <-wrote:
		assert.Equal(t, 8, n)
	case <-time.After(time.Second):
		t.Fatal("write in flight never returned")
	}
	_, err := f.GetTimeout(time.Second)
	require.NoError(t, err)
	assert.True(t, ch.Closed())
	assert.Zero(t, c.ref.refs())
}

func TestConnection_CloseAfterCloseKeepsFirstOutcome(t *testing.T) {
	tr, _ := newTestTransport(t)
	c, ch := newFakeConn(tr, 3)
	f1 := c.CloseAsync()
	f2 := c.CloseAsync()
	assert.Same(t, f1, f2)
	_, err := f1.GetTimeout(time.Second)
	require.NoError(t, err)
	assert.True(t, ch.Closed())
	assert.ErrorIs(t, c.acquire(), api.ErrConnectionClosed)
}
