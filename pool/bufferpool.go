// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
//
// Cross-platform MemoryManager with transparent direct-memory backend selection.
// All public API is OS-agnostic; platform-specific allocators in separate files.

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"github.com/momentics/hioload-nio/core/buffer"
)

// MemoryManager allocates and disposes heap and direct buffers.
type MemoryManager struct {
	heap bytebufferpool.Pool

	heapAlloc   atomic.Int64
	heapFree    atomic.Int64
	directAlloc atomic.Int64
}

// Stats aggregates allocation counters for observability.
type Stats struct {
	HeapAlloc   int64
	HeapFree    int64
	DirectAlloc int64
}

// NewMemoryManager creates an empty manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{}
}

var (
	defaultOnce sync.Once
	defaultMgr  *MemoryManager
)

// DefaultManager returns a process-wide MemoryManager so all components
// reuse the same heap pool instead of fragmenting allocations.
func DefaultManager() *MemoryManager {
	defaultOnce.Do(func() {
		defaultMgr = NewMemoryManager()
	})
	return defaultMgr
}

// Allocate returns a heap buffer of exactly size bytes.
// Dispose returns its storage to the heap pool.
func (m *MemoryManager) Allocate(size int) *buffer.ByteBuffer {
	bb := m.heap.Get()
	if cap(bb.B) < size {
		bb.B = make([]byte, size)
	}
	bb.B = bb.B[:size]
	m.heapAlloc.Add(1)
	return buffer.New(bb.B, false, func(*buffer.ByteBuffer) {
		m.heapFree.Add(1)
		m.heap.Put(bb)
	})
}

// AllocateDirect returns a direct buffer of exactly size bytes.
// Direct memory is released when the buffer becomes unreachable; Dispose
// is a no-op for it.
func (m *MemoryManager) AllocateDirect(size int) *buffer.ByteBuffer {
	m.directAlloc.Add(1)
	return allocateDirect(size)
}

// Stats returns a snapshot of the allocation counters.
func (m *MemoryManager) Stats() Stats {
	return Stats{
		HeapAlloc:   m.heapAlloc.Load(),
		HeapFree:    m.heapFree.Load(),
		DirectAlloc: m.directAlloc.Load(),
	}
}
