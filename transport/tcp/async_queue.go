// File: transport/tcp/async_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking reader and writer. A request is attempted at once; what the
// channel can not take now is queued per connection and resumed on the
// next readiness event, ahead of the protocol processor.

package tcp

import (
	"context"
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/core/buffer"
)

type failer interface {
	fail(err error)
}

// asyncQueue is a per-connection FIFO of pending requests.
type asyncQueue struct {
	mu     sync.Mutex
	q      *queue.Queue
	closed bool
}

func newAsyncQueue() *asyncQueue {
	return &asyncQueue{q: queue.New()}
}

func (a *asyncQueue) pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.q.Length() > 0
}

// Len returns the number of queued requests.
func (a *asyncQueue) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.q.Length()
}

// closeAll fails every queued request and rejects new ones.
func (a *asyncQueue) closeAll(err error) {
	a.mu.Lock()
	a.closed = true
	var items []failer
	for a.q.Length() > 0 {
		items = append(items, a.q.Remove().(failer))
	}
	a.mu.Unlock()
	for _, it := range items {
		it.fail(err)
	}
}

// ReadResult is the outcome of a queued or blocking read.
type ReadResult struct {
	Buffer buffer.Buffer
	Read   int
}

type readRequest struct {
	buf buffer.Buffer
	f   *Future[ReadResult]
}

func (r *readRequest) fail(err error) { r.f.fail(err) }

type writeRequest struct {
	buf    buffer.Buffer
	result *WriteResult
	f      *Future[*WriteResult]
}

func (w *writeRequest) fail(err error) { w.f.fail(err) }

// Reader reads from a connection, completing through a future and an
// optional handler.
type Reader interface {
	Read(ctx context.Context, c *Connection, buf buffer.Buffer, h api.CompletionHandler[ReadResult]) *Future[ReadResult]
}

// Writer writes a whole buffer to a connection, completing through a
// future and an optional handler.
type Writer interface {
	Write(ctx context.Context, c *Connection, buf buffer.Buffer, h api.CompletionHandler[*WriteResult]) *Future[*WriteResult]
}

// AsyncQueueReader completes a read once any data arrived.
type AsyncQueueReader struct {
	t *Transport
}

var _ Reader = (*AsyncQueueReader)(nil)

func (r *AsyncQueueReader) Read(ctx context.Context, c *Connection, buf buffer.Buffer, h api.CompletionHandler[ReadResult]) *Future[ReadResult] {
	req := &readRequest{buf: buf, f: newFuture(h)}
	q := c.reads
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		req.fail(api.ErrConnectionClosed)
		return req.f
	}
	if q.q.Length() == 0 && r.attempt(ctx, c, req) {
		q.mu.Unlock()
		return req.f
	}
	q.q.Add(req)
	q.mu.Unlock()

	if err := c.EnableIOEvent(api.EventRead); err != nil {
		q.closeAll(err)
	}
	return req.f
}

// attempt reports whether req completed, successfully or not.
func (r *AsyncQueueReader) attempt(ctx context.Context, c *Connection, req *readRequest) bool {
	out, n, err := r.t.read(ctx, c, req.buf)
	if err != nil {
		req.f.fail(err)
		return true
	}
	if n == 0 {
		return false
	}
	req.f.complete(ReadResult{Buffer: out, Read: n}, nil)
	return true
}

// process serves queued reads on read readiness; true keeps monitoring.
func (r *AsyncQueueReader) process(ctx context.Context, c *Connection) (bool, error) {
	q := c.reads
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.q.Length() > 0 {
		req := q.q.Peek().(*readRequest)
		if !r.attempt(ctx, c, req) {
			return true, nil
		}
		q.q.Remove()
	}
	return false, nil
}

// AsyncQueueWriter keeps per-connection write order: a new request is
// attempted directly only when nothing is queued ahead of it.
type AsyncQueueWriter struct {
	t *Transport
}

var _ Writer = (*AsyncQueueWriter)(nil)

func (w *AsyncQueueWriter) Write(ctx context.Context, c *Connection, buf buffer.Buffer, h api.CompletionHandler[*WriteResult]) *Future[*WriteResult] {
	req := &writeRequest{buf: buf, result: &WriteResult{}, f: newFuture(h)}
	q := c.writes
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		req.fail(api.ErrConnectionClosed)
		return req.f
	}
	if q.q.Length() == 0 && w.attempt(ctx, c, req) {
		q.mu.Unlock()
		return req.f
	}
	q.q.Add(req)
	q.mu.Unlock()

	if err := c.EnableIOEvent(api.EventWrite); err != nil {
		q.closeAll(err)
	}
	return req.f
}

func (w *AsyncQueueWriter) attempt(ctx context.Context, c *Connection, req *writeRequest) bool {
	if _, err := w.t.Write(ctx, c, req.buf, req.result); err != nil {
		req.f.fail(err)
		return true
	}
	if req.buf.HasRemaining() {
		return false
	}
	req.f.complete(req.result, nil)
	return true
}

// process drains queued writes on write readiness; true keeps monitoring.
func (w *AsyncQueueWriter) process(ctx context.Context, c *Connection) (bool, error) {
	q := c.writes
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.q.Length() > 0 {
		req := q.q.Peek().(*writeRequest)
		if !w.attempt(ctx, c, req) {
			return true, nil
		}
		q.q.Remove()
	}
	return false, nil
}
