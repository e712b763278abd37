// File: transport/tcp/fdref.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Descriptor reference counting. Every operation on a channel holds a
// reference for the duration of its syscall; close marks the descriptor
// closing and the last reference releases it, so a descriptor number is
// never handed back to the kernel while a call on it is in flight.

package tcp

import "sync/atomic"

const fdClosing = uint64(1) << 63

// fdRef is the closing flag in the top bit plus the in-flight reference
// count in the rest.
type fdRef struct {
	state atomic.Uint64
}

// incref takes a reference. It fails once the descriptor is closing.
func (r *fdRef) incref() bool {
	for {
		old := r.state.Load()
		if old&fdClosing != 0 {
			return false
		}
		if r.state.CompareAndSwap(old, old+1) {
			return true
		}
	}
}

// decref drops a reference and reports whether it was the last one of a
// closing descriptor, in which case the caller must release it.
func (r *fdRef) decref() bool {
	return r.state.Add(^uint64(0)) == fdClosing
}

// markClosing sets the closing flag. first is false if it was already set;
// idle reports that no reference was held, so the caller releases.
func (r *fdRef) markClosing() (first, idle bool) {
	for {
		old := r.state.Load()
		if old&fdClosing != 0 {
			return false, false
		}
		if r.state.CompareAndSwap(old, old|fdClosing) {
			return true, old == 0
		}
	}
}

// refs returns the references currently held.
func (r *fdRef) refs() int { return int(r.state.Load() &^ fdClosing) }

// closing reports whether markClosing has run.
func (r *fdRef) closing() bool { return r.state.Load()&fdClosing != 0 }
