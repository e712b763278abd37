// File: core/buffer/composite.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CompositeBuffer chains segments for scatter reads and gathering writes.
// Designed for single-goroutine use; no locks for minimal overhead.

package buffer

// CompositeBuffer is an ordered list of segments treated as one buffer.
// Each segment keeps its own position and limit.
type CompositeBuffer struct {
	segments []*ByteBuffer
}

// NewComposite creates a composite over segs, in wire order.
func NewComposite(segs ...*ByteBuffer) *CompositeBuffer {
	return &CompositeBuffer{segments: segs}
}

// Append adds a segment at the tail.
func (c *CompositeBuffer) Append(seg *ByteBuffer) {
	c.segments = append(c.segments, seg)
}

// Len reports the number of segments.
func (c *CompositeBuffer) Len() int { return len(c.segments) }

// Segments returns the raw segment slice. Callers must not reorder it.
func (c *CompositeBuffer) Segments() []*ByteBuffer { return c.segments }

func (c *CompositeBuffer) Remaining() int {
	n := 0
	for _, s := range c.segments {
		n += s.Remaining()
	}
	return n
}

func (c *CompositeBuffer) HasRemaining() bool {
	for _, s := range c.segments {
		if s.HasRemaining() {
			return true
		}
	}
	return false
}

// IsDirect is true only when every segment is direct.
func (c *CompositeBuffer) IsDirect() bool {
	for _, s := range c.segments {
		if !s.IsDirect() {
			return false
		}
	}
	return true
}

func (c *CompositeBuffer) IsComposite() bool { return true }

// Positions snapshots the position of every segment.
func (c *CompositeBuffer) Positions() []int {
	out := make([]int, len(c.segments))
	for i, s := range c.segments {
		out[i] = s.pos
	}
	return out
}

// Advance distributes n consumed bytes across segments in order.
func (c *CompositeBuffer) Advance(n int) {
	for _, s := range c.segments {
		if n == 0 {
			return
		}
		step := min(n, s.Remaining())
		s.pos += step
		n -= step
	}
}

// Vectors returns the remaining window of every non-exhausted segment,
// suitable for readv/writev. The slice is freshly allocated.
func (c *CompositeBuffer) Vectors() [][]byte {
	out := make([][]byte, 0, len(c.segments))
	for _, s := range c.segments {
		if s.HasRemaining() {
			out = append(out, s.Bytes())
		}
	}
	return out
}

// Dispose disposes every segment and empties the composite.
func (c *CompositeBuffer) Dispose() {
	for _, s := range c.segments {
		s.Dispose()
	}
	c.segments = nil
}
