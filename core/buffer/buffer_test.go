package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nio/core/buffer"
)

func TestByteBuffer_PositionLimit(t *testing.T) {
	b := buffer.Wrap([]byte("hello world"))
	assert.Equal(t, 11, b.Remaining())
	assert.False(t, b.IsDirect())

	b.Advance(6)
	assert.Equal(t, "world", string(b.Bytes()))

	b.SetLimit(3)
	assert.Equal(t, 3, b.Position(), "position clamps to the new limit")
	assert.False(t, b.HasRemaining())

	assert.Panics(t, func() { b.SetPosition(4) })
	assert.Panics(t, func() { b.SetLimit(12) })
}

func TestByteBuffer_PutFromFlip(t *testing.T) {
	dst := buffer.New(make([]byte, 4), true, nil)
	src := buffer.Wrap([]byte("abcdef"))

	n := dst.PutFrom(src)
	require.Equal(t, 4, n)
	assert.Equal(t, 4, src.Position())
	assert.False(t, dst.HasRemaining())

	dst.Flip()
	assert.Equal(t, "abcd", string(dst.Bytes()))

	dst.Clear()
	assert.Equal(t, 4, dst.Remaining())
}

func TestByteBuffer_DisposeOnce(t *testing.T) {
	calls := 0
	b := buffer.New(make([]byte, 8), false, func(*buffer.ByteBuffer) { calls++ })
	b.Dispose()
	b.Dispose()
	assert.Equal(t, 1, calls)
}

func TestCompositeBuffer_AdvanceAndVectors(t *testing.T) {
	c := buffer.NewComposite(
		buffer.Wrap([]byte("ab")),
		buffer.Wrap(nil),
		buffer.Wrap([]byte("cde")),
	)
	assert.True(t, c.IsComposite())
	assert.Equal(t, 5, c.Remaining())
	assert.Len(t, c.Vectors(), 2, "empty segments are skipped")

	c.Advance(3)
	assert.Equal(t, []int{2, 0, 1}, c.Positions())
	assert.Equal(t, "de", string(c.Vectors()[0]))
}

func TestCompositeBuffer_IsDirect(t *testing.T) {
	d := buffer.New(make([]byte, 2), true, nil)
	assert.True(t, buffer.NewComposite(d).IsDirect())
	assert.False(t, buffer.NewComposite(d, buffer.Wrap([]byte("x"))).IsDirect())
}
