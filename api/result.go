// Package api
// Author: momentics@gmail.com
//
// Generic result and completion callbacks.

package api

// Result wraps any payload or error.
type Result[T any] struct {
	Value T
	Err   error
}

// CompletionHandler receives the eventual outcome of an asynchronous operation.
type CompletionHandler[T any] interface {
	Completed(result T)
	Failed(err error)
}

// CompletionFuncs adapts a pair of functions to CompletionHandler.
// Nil members are skipped.
type CompletionFuncs[T any] struct {
	OnCompleted func(T)
	OnFailed    func(error)
}

func (f CompletionFuncs[T]) Completed(result T) {
	if f.OnCompleted != nil {
		f.OnCompleted(result)
	}
}

func (f CompletionFuncs[T]) Failed(err error) {
	if f.OnFailed != nil {
		f.OnFailed(err)
	}
}
