// File: core/buffer/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import "fmt"

// Buffer is the common view over single and composite buffers.
type Buffer interface {
	// Remaining returns the number of bytes between position and limit.
	Remaining() int
	HasRemaining() bool
	// IsDirect reports whether the memory is natively writable by a channel.
	IsDirect() bool
	IsComposite() bool
	// Dispose returns the underlying memory to its allocator.
	// The buffer must not be used afterwards.
	Dispose()
}

// ByteBuffer is a single contiguous segment with position and limit.
// Invariant: 0 <= pos <= lim <= cap(data).
type ByteBuffer struct {
	data    []byte
	pos     int
	lim     int
	direct  bool
	release func(*ByteBuffer)
}

// Wrap returns a heap buffer viewing p; position 0, limit len(p).
func Wrap(p []byte) *ByteBuffer {
	return &ByteBuffer{data: p[:len(p):len(p)], lim: len(p)}
}

// New returns a ByteBuffer over data. Allocators use it to attach a
// release callback invoked by Dispose.
func New(data []byte, direct bool, release func(*ByteBuffer)) *ByteBuffer {
	return &ByteBuffer{
		data:    data[:len(data):len(data)],
		lim:     len(data),
		direct:  direct,
		release: release,
	}
}

func (b *ByteBuffer) Position() int { return b.pos }
func (b *ByteBuffer) Limit() int    { return b.lim }
func (b *ByteBuffer) Capacity() int { return len(b.data) }

// SetPosition moves the position; it panics outside [0, limit].
func (b *ByteBuffer) SetPosition(pos int) {
	if pos < 0 || pos > b.lim {
		panic(fmt.Sprintf("buffer: position %d out of range [0,%d]", pos, b.lim))
	}
	b.pos = pos
}

// SetLimit moves the limit, clamping the position; it panics outside [0, capacity].
func (b *ByteBuffer) SetLimit(lim int) {
	if lim < 0 || lim > len(b.data) {
		panic(fmt.Sprintf("buffer: limit %d out of range [0,%d]", lim, len(b.data)))
	}
	b.lim = lim
	if b.pos > lim {
		b.pos = lim
	}
}

func (b *ByteBuffer) Remaining() int     { return b.lim - b.pos }
func (b *ByteBuffer) HasRemaining() bool { return b.pos < b.lim }
func (b *ByteBuffer) IsDirect() bool     { return b.direct }
func (b *ByteBuffer) IsComposite() bool  { return false }

// Bytes returns the window between position and limit. No copy is made.
func (b *ByteBuffer) Bytes() []byte { return b.data[b.pos:b.lim] }

// Advance moves the position forward by n bytes.
func (b *ByteBuffer) Advance(n int) { b.SetPosition(b.pos + n) }

// Flip sets the limit to the position and the position to zero.
func (b *ByteBuffer) Flip() {
	b.lim = b.pos
	b.pos = 0
}

// Clear resets position to zero and limit to capacity. Contents stay.
func (b *ByteBuffer) Clear() {
	b.pos = 0
	b.lim = len(b.data)
}

// Trim exposes exactly n bytes from the start: position 0, limit n.
func (b *ByteBuffer) Trim(n int) {
	b.SetLimit(n)
	b.pos = 0
}

// PutFrom copies as many bytes as fit from src into b, advancing both
// positions. It returns the number of bytes copied.
func (b *ByteBuffer) PutFrom(src *ByteBuffer) int {
	n := copy(b.data[b.pos:b.lim], src.data[src.pos:src.lim])
	b.pos += n
	src.pos += n
	return n
}

// Write appends p at the position, up to the limit.
func (b *ByteBuffer) Write(p []byte) (int, error) {
	n := copy(b.data[b.pos:b.lim], p)
	b.pos += n
	if n < len(p) {
		return n, fmt.Errorf("buffer: overflow writing %d bytes, %d fit", len(p), n)
	}
	return n, nil
}

// Dispose hands the buffer back to its allocator, if any.
func (b *ByteBuffer) Dispose() {
	if r := b.release; r != nil {
		b.release = nil
		r(b)
	}
}

// Data exposes the full backing slice, for allocators.
func (b *ByteBuffer) Data() []byte { return b.data }

func (b *ByteBuffer) String() string {
	return fmt.Sprintf("ByteBuffer[pos=%d lim=%d cap=%d direct=%t]", b.pos, b.lim, len(b.data), b.direct)
}
