// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/core/buffer"
	"github.com/momentics/hioload-nio/fake"
)

func TestRead_AllocatedTrimsToAvailable(t *testing.T) {
	for _, size := range []int{16, 64, 8192} {
		for _, avail := range []int{1, size / 2, size} {
			t.Run(fmt.Sprintf("S=%d/R=%d", size, avail), func(t *testing.T) {
				tr, _ := newTestTransport(t, WithReadBufferSize(size))
				c, ch := newFakeConn(tr, 3)
				data := pattern(avail, 1)
				ch.Feed(data)

				got, err := tr.Read(context.Background(), c, nil)
				require.NoError(t, err)
				require.NotNil(t, got)
				bb := got.(*buffer.ByteBuffer)
				assert.Equal(t, avail, bb.Remaining())
				assert.LessOrEqual(t, bb.Remaining(), size)
				assert.Equal(t, data, bb.Bytes())
			})
		}
	}
}

func TestRead_AttemptBounds(t *testing.T) {
	tr, _ := newTestTransport(t, WithMaxReadAttempts(3))

	t.Run("off reactor retries up to the bound", func(t *testing.T) {
		c, ch := newFakeConn(tr, 3)
		for i := 0; i < 5; i++ {
			ch.Feed([]byte{byte(i)})
		}
		got, err := tr.Read(context.Background(), c, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, ch.ReadCalls())
		assert.Equal(t, []byte{0, 1, 2}, got.(*buffer.ByteBuffer).Bytes())
	})

	t.Run("off reactor stops when full", func(t *testing.T) {
		c, ch := newFakeConn(tr, 3)
		ch.Feed(pattern(8, 0))
		ch.Feed(pattern(8, 0))
		buf := buffer.Wrap(make([]byte, 8))
		_, err := tr.Read(context.Background(), c, buf)
		require.NoError(t, err)
		assert.Equal(t, 1, ch.ReadCalls())
		assert.False(t, buf.HasRemaining())
	})

	t.Run("on reactor reads once", func(t *testing.T) {
		c, ch := newFakeConn(tr, 3)
		for i := 0; i < 5; i++ {
			ch.Feed([]byte{byte(i)})
		}
		got, err := tr.Read(selectorCtx(), c, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, ch.ReadCalls())
		assert.Equal(t, []byte{0}, got.(*buffer.ByteBuffer).Bytes())
	})

	t.Run("on reactor with no data", func(t *testing.T) {
		c, ch := newFakeConn(tr, 3)
		got, err := tr.Read(selectorCtx(), c, nil)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Equal(t, 1, ch.ReadCalls())
	})
}

func TestRead_NoDataVersusEndOfStream(t *testing.T) {
	tr, _ := newTestTransport(t)

	c, ch := newFakeConn(tr, 3)
	got, err := tr.Read(context.Background(), c, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, DefaultMaxReadAttempts, ch.ReadCalls())

	ch.SetEOF()
	got, err = tr.Read(context.Background(), c, nil)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, api.ErrEndOfStream)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRead_AllocatedFailureIsEndOfStream(t *testing.T) {
	tr, _ := newTestTransport(t)
	c, ch := newFakeConn(tr, 3)
	ch.SetReadError(errors.New("connection reset"))

	got, err := tr.Read(context.Background(), c, nil)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, api.ErrEndOfStream)
}

func TestRead_SuppliedBufferKeepsContentAtEndOfStream(t *testing.T) {
	tr, _ := newTestTransport(t)
	c, ch := newFakeConn(tr, 3)
	ch.Feed([]byte("abc"))
	ch.SetEOF()

	buf := buffer.Wrap(make([]byte, 10))
	out, err := tr.Read(context.Background(), c, buf)
	require.NoError(t, err)
	assert.Same(t, buf, out)
	assert.Equal(t, 3, buf.Position())

	_, err = tr.Read(context.Background(), c, buf)
	assert.ErrorIs(t, err, api.ErrEndOfStream)
	assert.Equal(t, 3, buf.Position())
	assert.Equal(t, []byte("abc"), buf.Data()[:3])
}

func TestRead_SuppliedBufferChannelError(t *testing.T) {
	tr, _ := newTestTransport(t)
	c, ch := newFakeConn(tr, 3)
	boom := errors.New("boom")
	ch.SetReadError(boom)

	_, err := tr.Read(context.Background(), c, buffer.Wrap(make([]byte, 4)))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestRead_CompositeUsesOneScatterCallPerAttempt(t *testing.T) {
	tr, _ := newTestTransport(t)
	c, ch := newFakeConn(tr, 3)
	ch.Feed([]byte("abcdef"))

	a := buffer.Wrap(make([]byte, 4))
	b := buffer.Wrap(make([]byte, 4))
	cb := buffer.NewComposite(a, b)

	_, err := tr.Read(selectorCtx(), c, cb)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.ReadCalls())
	assert.Equal(t, []byte("abcd"), a.Data())
	assert.Equal(t, []byte("ef"), b.Data()[:2])
	assert.Equal(t, 2, b.Position())
	assert.Equal(t, 2, cb.Remaining())
}

func TestRead_FullBufferIsNoop(t *testing.T) {
	tr, _ := newTestTransport(t)
	c, ch := newFakeConn(tr, 3)
	buf := buffer.Wrap(make([]byte, 2))
	buf.Advance(2)

	out, err := tr.Read(context.Background(), c, buf)
	require.NoError(t, err)
	assert.Same(t, buf, out)
	assert.Zero(t, ch.ReadCalls())
}

func TestRead_ProbesBytes(t *testing.T) {
	probe := &fake.Probe{}
	tr, _ := newTestTransport(t, WithProbes(probe))
	c, ch := newFakeConn(tr, 3)
	ch.Feed([]byte("xyz"))

	_, err := tr.Read(context.Background(), c, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"read:" + c.ID() + ":3"}, probe.Events())
}
