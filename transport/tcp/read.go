// File: transport/tcp/read.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Read engine. Off the reactor a read retries up to MaxReadAttempts times,
// since no further readiness notification arrives until the channel is
// re-armed. On the reactor exactly one read call is made and the reactor's
// own re-poll delivers the rest.

package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/core/buffer"
	"github.com/momentics/hioload-nio/internal/concurrency"
)

// Read reads from c into buf. With a nil buf a buffer of the connection's
// read size is allocated and returned trimmed to the bytes read, or nil if
// no data was available. A closed peer yields api.ErrEndOfStream; content
// already read into a caller-supplied buf is kept. A closed connection
// yields api.ErrConnectionClosed.
func (t *Transport) Read(ctx context.Context, c *Connection, buf buffer.Buffer) (buffer.Buffer, error) {
	out, _, err := t.read(ctx, c, buf)
	return out, err
}

func (t *Transport) read(ctx context.Context, c *Connection, buf buffer.Buffer) (buffer.Buffer, int, error) {
	if err := c.acquire(); err != nil {
		return buf, 0, fmt.Errorf("read %s: %w", c.id, err)
	}
	defer c.release()

	attempts := t.config().MaxReadAttempts
	if concurrency.IsSelector(ctx) {
		attempts = 1
	}
	if buf == nil {
		return t.readAllocated(c, attempts)
	}
	if !buf.HasRemaining() {
		return buf, 0, nil
	}

	var (
		read int
		err  error
	)
	switch b := buf.(type) {
	case *buffer.CompositeBuffer:
		read, err = readLoop(func() (int, error) {
			n, err := rawCode(c.ch.ReadVector(b.Vectors()))
			if n > 0 {
				b.Advance(n)
			}
			return n, err
		}, b.HasRemaining, attempts)
	case *buffer.ByteBuffer:
		read, err = readLoop(func() (int, error) {
			n, err := rawCode(c.ch.Read(b.Bytes()))
			if n > 0 {
				b.Advance(n)
			}
			return n, err
		}, b.HasRemaining, attempts)
	default:
		return buf, 0, fmt.Errorf("read %s: unsupported buffer %T: %w", c.id, buf, api.ErrInvalidArgument)
	}

	c.onRead(read)
	t.logger().Debug("read", zap.String("conn", c.id), zap.Bool("allocated", false), zap.Int("bytes", read))
	if err != nil {
		return buf, max(read, 0), fmt.Errorf("read %s: %w", c.id, err)
	}
	if read < 0 {
		return buf, 0, api.ErrEndOfStream
	}
	return buf, read, nil
}

func (t *Transport) readAllocated(c *Connection, attempts int) (buffer.Buffer, int, error) {
	b := t.config().Memory.Allocate(c.ReadBufferSize())
	read, err := readLoop(func() (int, error) {
		n, err := rawCode(c.ch.Read(b.Bytes()))
		if n > 0 {
			b.Advance(n)
		}
		return n, err
	}, b.HasRemaining, attempts)
	if err != nil {
		t.logger().Debug("allocated read failed", zap.String("conn", c.id), zap.Error(err))
		read = -1
	}
	c.onRead(read)
	t.logger().Debug("read", zap.String("conn", c.id), zap.Bool("allocated", true), zap.Int("bytes", read))

	if read > 0 {
		b.Trim(read)
		return b, read, nil
	}
	b.Dispose()
	if read < 0 {
		return nil, 0, api.ErrEndOfStream
	}
	return nil, 0, nil
}

// rawCode maps a channel result to bytes read, 0 for no data or -1 for end
// of stream.
func rawCode(n int, err error) (int, error) {
	if errors.Is(err, io.EOF) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// readLoop calls attempt until hasRoom reports false, maxAttempts calls were
// made or the channel reports end of stream. If nothing was read it
// returns the last raw code, so 0 (no data yet) and -1 (closed) stay
// distinguishable.
func readLoop(attempt func() (int, error), hasRoom func() bool, maxAttempts int) (int, error) {
	read, attempts := 0, 0
	for {
		now, err := attempt()
		if err != nil {
			return read, err
		}
		if now < 0 {
			if read == 0 {
				return now, nil
			}
			return read, nil
		}
		read += now
		attempts++
		if !hasRoom() || attempts >= maxAttempts {
			return read, nil
		}
	}
}
