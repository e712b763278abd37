// File: transport/tcp/blocking.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking reader and writer: the engines are retried with bounded
// exponential backoff until the request completes, the peer closes, the
// context ends or the client socket timeout elapses.

package tcp

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/core/buffer"
)

var errNoProgress = errors.New("no progress")

const (
	blockingInitialInterval = time.Millisecond
	blockingMaxInterval     = 50 * time.Millisecond
)

func (t *Transport) blockingBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = blockingInitialInterval
	b.MaxInterval = blockingMaxInterval
	b.MaxElapsedTime = 0
	if d := t.config().ClientSocketTimeout; d > 0 {
		b.MaxElapsedTime = d
	}
	return backoff.WithContext(b, ctx)
}

func timeoutOf(err error) error {
	if errors.Is(err, errNoProgress) {
		return api.ErrOperationTimeout
	}
	return err
}

// BlockingReader waits until some data was read.
type BlockingReader struct {
	t *Transport
}

var _ Reader = (*BlockingReader)(nil)

func (r *BlockingReader) Read(ctx context.Context, c *Connection, buf buffer.Buffer, h api.CompletionHandler[ReadResult]) *Future[ReadResult] {
	var res ReadResult
	err := backoff.Retry(func() error {
		out, n, err := r.t.read(ctx, c, buf)
		if err != nil {
			return backoff.Permanent(err)
		}
		if n == 0 {
			return errNoProgress
		}
		res = ReadResult{Buffer: out, Read: n}
		return nil
	}, r.t.blockingBackOff(ctx))
	return completedFuture(res, timeoutOf(err), h)
}

// BlockingWriter waits until the whole buffer was written.
type BlockingWriter struct {
	t *Transport
}

var _ Writer = (*BlockingWriter)(nil)

func (w *BlockingWriter) Write(ctx context.Context, c *Connection, buf buffer.Buffer, h api.CompletionHandler[*WriteResult]) *Future[*WriteResult] {
	res := &WriteResult{}
	err := backoff.Retry(func() error {
		if _, err := w.t.Write(ctx, c, buf, res); err != nil {
			return backoff.Permanent(err)
		}
		if buf.HasRemaining() {
			return errNoProgress
		}
		return nil
	}, w.t.blockingBackOff(ctx))
	if err != nil {
		return completedFuture[*WriteResult](nil, timeoutOf(err), h)
	}
	return completedFuture(res, nil, h)
}
