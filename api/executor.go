// Package api
// Author: momentics
//
// Executor contract for worker-pool task dispatch off the reactor.

package api

import "context"

// Executor abstracts parallel task execution.
type Executor interface {
	// Submit schedules task for execution. The context passed to task
	// carries the identity of the worker running it.
	Submit(task func(ctx context.Context)) error

	// NumWorkers returns current number of worker routines.
	NumWorkers() int

	// Resize adjusts the concurrency at runtime.
	Resize(newCount int)

	// Close stops accepting tasks and releases the workers.
	Close()
}
