// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for hioload-nio: worker identity carried through
// context.Context (reactor goroutine vs pool worker), an ants-backed
// thread pool implementing api.Executor, CPU pinning and CPU counting.
package concurrency
