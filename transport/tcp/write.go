// File: transport/tcp/write.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Write engine. Direct segments go straight to the channel; heap segments
// are staged through the worker's scratch buffer. Consecutive heap
// segments share one staging pass, and the scratch buffer is flushed before
// any direct segment so the wire carries the original byte order. A partial
// flush rolls source positions back by exactly the unsent remainder and
// ends the call.

package tcp

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/core/buffer"
	"github.com/momentics/hioload-nio/internal/concurrency"
	"github.com/momentics/hioload-nio/pool"
)

// maxStagingSize caps the scratch buffer of a single heap-buffer write.
const maxStagingSize = 1 << 20

// WriteResult accumulates the outcome of one logical send across the
// partial writes it may take.
type WriteResult struct {
	Written int
	Dst     net.Addr
	Message buffer.Buffer
}

// Write writes buf to c and returns the bytes the channel accepted, which
// may be fewer than buf holds; buf positions then mark where to resume.
// Accepting nothing because of a channel failure is an *api.WriteError.
// A non-nil result accumulates the outcome. Writing to a closed connection
// fails with api.ErrConnectionClosed inside the *api.WriteError.
func (t *Transport) Write(ctx context.Context, c *Connection, buf buffer.Buffer, result *WriteResult) (int, error) {
	if err := c.acquire(); err != nil {
		return 0, &api.WriteError{Conn: c.id, Err: err}
	}
	defer c.release()

	var (
		written int
		err     error
	)
	switch b := buf.(type) {
	case *buffer.CompositeBuffer:
		written, err = writeGathered(ctx, c.ch, b, c.WriteBufferSize())
		t.logger().Debug("write", zap.String("conn", c.id), zap.Bool("composite", true), zap.Int("bytes", written))
	case *buffer.ByteBuffer:
		written, err = writeSimple(ctx, c.ch, b)
		t.logger().Debug("write", zap.String("conn", c.id), zap.Bool("composite", false), zap.Int("bytes", written))
	default:
		return 0, fmt.Errorf("write %s: unsupported buffer %T: %w", c.id, buf, api.ErrInvalidArgument)
	}

	if err != nil {
		if written == 0 {
			werr := &api.WriteError{Conn: c.id, Err: err}
			t.probeConn(func(p api.ConnectionProbe) { p.OnError(c.id, werr) })
			return 0, werr
		}
		// reported again by the next call
		t.logger().Debug("write failed after partial acceptance",
			zap.String("conn", c.id), zap.Int("bytes", written), zap.Error(err))
	}

	c.onWrite(written)
	if result != nil {
		result.Message = buf
		result.Written += written
		result.Dst = c.RemoteAddr()
	}
	return written, nil
}

func writeSimple(ctx context.Context, ch SocketChannel, b *buffer.ByteBuffer) (int, error) {
	if !b.HasRemaining() {
		return 0, nil
	}
	if b.IsDirect() {
		n, err := ch.Write(b.Bytes())
		if n > 0 {
			b.Advance(n)
		}
		return n, err
	}

	length := min(b.Remaining(), maxStagingSize)
	cache, done := concurrency.AcquireCache(ctx)
	defer done()
	rec := cache.Obtain(pool.ScratchSlot, length)
	defer cache.Release(pool.ScratchSlot, rec)

	scratch := rec.Buffer()
	if length < scratch.Remaining() {
		scratch.SetLimit(scratch.Position() + length)
	}
	scratch.PutFrom(b)

	n, err := flushScratch(ch, scratch)
	if rest := scratch.Remaining(); rest > 0 {
		b.SetPosition(b.Position() - rest)
	}
	return n, err
}

func writeGathered(ctx context.Context, ch SocketChannel, cb *buffer.CompositeBuffer, stageSize int) (int, error) {
	segs := cb.Segments()
	end := len(segs)
	initial := cb.Positions()

	var (
		written int
		cache   *pool.ThreadCache
		done    func()
		rec     *pool.Record
		scratch *buffer.ByteBuffer
	)
	defer func() {
		if rec != nil {
			cache.Release(pool.ScratchSlot, rec)
			done()
		}
	}()
	resetScratch := func() {
		scratch.Clear()
		scratch.SetLimit(stageSize)
	}

	next := nextAvailable(segs, -1)
	for i := next; i < end; i = next {
		seg := segs[i]
		next = nextAvailable(segs, i)

		if seg.IsDirect() {
			n, err := ch.Write(seg.Bytes())
			if n > 0 {
				seg.Advance(n)
				written += n
			}
			if err != nil || seg.HasRemaining() {
				return written, err
			}
			continue
		}

		if rec == nil {
			cache, done = concurrency.AcquireCache(ctx)
			rec = cache.Obtain(pool.ScratchSlot, stageSize)
			scratch = rec.Buffer()
			resetScratch()
		}
		scratch.PutFrom(seg)

		flush := next == end || segs[next].IsDirect()
		if scratch.HasRemaining() && !flush {
			continue
		}
		n, err := flushScratch(ch, scratch)
		written += n
		if rest := scratch.Remaining(); rest > 0 {
			rollback(segs, initial, i, rest)
			return written, err
		}
		resetScratch()
		if seg.HasRemaining() {
			// scratch filled mid-segment
			next = i
		}
	}
	return written, nil
}

// rollback returns unsent staged bytes to their source segments, walking
// backward from segment i and never moving a segment before the position it
// had when the call started.
func rollback(segs []*buffer.ByteBuffer, initial []int, i, remaining int) {
	for ; remaining > 0 && i >= 0; i-- {
		seg := segs[i]
		shift := min(remaining, seg.Position()-initial[i])
		seg.SetPosition(seg.Position() - shift)
		remaining -= shift
	}
}

func nextAvailable(segs []*buffer.ByteBuffer, start int) int {
	for i := start + 1; i < len(segs); i++ {
		if segs[i].HasRemaining() {
			return i
		}
	}
	return len(segs)
}

func flushScratch(ch SocketChannel, scratch *buffer.ByteBuffer) (int, error) {
	scratch.Flip()
	n, err := ch.Write(scratch.Bytes())
	if n > 0 {
		scratch.Advance(n)
	}
	return n, err
}
