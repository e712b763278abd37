// File: internal/concurrency/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker identity. Go has no thread-local storage, so the goroutine that
// owns a scratch cache passes its Worker down through the context.

package concurrency

import (
	"context"
	"sync"

	"github.com/momentics/hioload-nio/pool"
)

// Worker describes the goroutine executing engine code. Its Cache is
// confined to that goroutine for as long as the Worker is attached to it.
type Worker struct {
	ID       int
	Selector bool // true on a reactor run-loop goroutine
	Cache    *pool.ThreadCache
}

type workerKey struct{}

// WithWorker attaches w to ctx.
func WithWorker(ctx context.Context, w *Worker) context.Context {
	return context.WithValue(ctx, workerKey{}, w)
}

// WorkerFrom returns the worker attached to ctx, if any.
func WorkerFrom(ctx context.Context) (*Worker, bool) {
	if ctx == nil {
		return nil, false
	}
	w, ok := ctx.Value(workerKey{}).(*Worker)
	return w, ok && w != nil
}

// IsSelector reports whether ctx belongs to a reactor run-loop goroutine.
func IsSelector(ctx context.Context) bool {
	w, ok := WorkerFrom(ctx)
	return ok && w.Selector
}

// borrowed hands out caches to goroutines that carry no worker identity,
// e.g. application goroutines calling Write directly. A cache taken from it
// is owned exclusively until it is returned.
var borrowed = sync.Pool{
	New: func() any { return pool.NewThreadCache(nil) },
}

// AcquireCache returns the cache of the worker in ctx, or borrows one.
// The returned release func must be called when the caller is done.
func AcquireCache(ctx context.Context) (*pool.ThreadCache, func()) {
	if w, ok := WorkerFrom(ctx); ok && w.Cache != nil {
		return w.Cache, func() {}
	}
	c := borrowed.Get().(*pool.ThreadCache)
	return c, func() { borrowed.Put(c) }
}
