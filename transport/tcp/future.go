// File: transport/tcp/future.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Future is a one-shot completion handle that can be polled, awaited with a
// context or a timeout, or observed through a completion handler.

package tcp

import (
	"context"
	"sync"
	"time"

	"github.com/momentics/hioload-nio/api"
)

// Future holds the eventual outcome of an asynchronous operation.
type Future[T any] struct {
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	value   T
	err     error
	handler api.CompletionHandler[T]
	hooks   []func(T, error)
}

func newFuture[T any](h api.CompletionHandler[T]) *Future[T] {
	return &Future[T]{done: make(chan struct{}), handler: h}
}

func completedFuture[T any](v T, err error, h api.CompletionHandler[T]) *Future[T] {
	f := newFuture[T](h)
	f.complete(v, err)
	return f
}

// complete settles the future; only the first call has effect.
func (f *Future[T]) complete(v T, err error) bool {
	won := false
	f.once.Do(func() {
		won = true
		f.mu.Lock()
		f.value, f.err = v, err
		h := f.handler
		hooks := f.hooks
		f.hooks = nil
		close(f.done)
		f.mu.Unlock()
		for _, hook := range hooks {
			hook(v, err)
		}
		if h != nil {
			if err != nil {
				h.Failed(err)
			} else {
				h.Completed(v)
			}
		}
	})
	return won
}

func (f *Future[T]) fail(err error) bool {
	var zero T
	return f.complete(zero, err)
}

// onComplete runs fn when the future settles, immediately if it already has.
func (f *Future[T]) onComplete(fn func(T, error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		v, err := f.value, f.err
		f.mu.Unlock()
		fn(v, err)
		return
	default:
	}
	f.hooks = append(f.hooks, fn)
	f.mu.Unlock()
}

// Done is closed once the outcome is known.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// IsDone reports whether the outcome is known.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get waits for the outcome or for ctx to end.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// GetTimeout waits at most d. It fails with api.ErrOperationTimeout.
func (f *Future[T]) GetTimeout(d time.Duration) (T, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-timer.C:
		var zero T
		return zero, api.ErrOperationTimeout
	}
}

// Result returns the outcome without waiting; ok is false while pending.
func (f *Future[T]) Result() (api.Result[T], bool) {
	if !f.IsDone() {
		return api.Result[T]{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return api.Result[T]{Value: f.value, Err: f.err}, true
}

// MarkForRecycle drops the references held by a settled future so the
// objects it points to can be collected while the handle is still cached.
func (f *Future[T]) MarkForRecycle() {
	if !f.IsDone() {
		return
	}
	f.mu.Lock()
	var zero T
	f.value = zero
	f.handler = nil
	f.mu.Unlock()
}
