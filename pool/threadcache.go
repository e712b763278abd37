// File: pool/threadcache.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker-confined scratch buffer cache. Each worker (reactor or pool
// goroutine) owns one ThreadCache; a record obtained from it is never
// touched by another goroutine.

package pool

import (
	"weak"

	"github.com/momentics/hioload-nio/core/buffer"
)

// Slot is a fixed index into a ThreadCache.
type Slot int

const (
	// ScratchSlot holds the direct buffer used to stage heap data for writes.
	ScratchSlot Slot = iota
	numSlots
)

// Record holds a pooled direct buffer. While in use it keeps a strong
// handle; once released only a weak handle remains and the collector may
// reclaim the memory.
type Record struct {
	strong *buffer.ByteBuffer
	weak   weak.Pointer[buffer.ByteBuffer]
}

// Buffer returns the strongly held buffer, nil after release.
func (r *Record) Buffer() *buffer.ByteBuffer { return r.strong }

func (r *Record) reset(b *buffer.ByteBuffer) {
	r.strong = b
	r.weak = weak.Pointer[buffer.ByteBuffer]{}
}

// switchToStrong upgrades the weak handle. It returns nil if reclaimed.
func (r *Record) switchToStrong() *buffer.ByteBuffer {
	if r.strong == nil {
		r.strong = r.weak.Value()
	}
	return r.strong
}

func (r *Record) switchToWeak() {
	if r.strong != nil {
		r.weak = weak.Make(r.strong)
	}
	r.strong = nil
}

// CacheStats counts obtain outcomes for one cache.
type CacheStats struct {
	Hits   int
	Misses int
}

// ThreadCache is a per-worker, single-record-per-slot cache.
// It is not safe for concurrent use; confinement is the caller's contract.
type ThreadCache struct {
	mm    *MemoryManager
	slots [numSlots]*Record
	stats CacheStats
}

// NewThreadCache creates a cache allocating from mm (DefaultManager if nil).
func NewThreadCache(mm *MemoryManager) *ThreadCache {
	if mm == nil {
		mm = DefaultManager()
	}
	return &ThreadCache{mm: mm}
}

// Obtain returns a record whose buffer is cleared and has capacity >= size.
// The cached record is reused when large enough and not yet reclaimed;
// otherwise a fresh direct buffer replaces it.
func (c *ThreadCache) Obtain(slot Slot, size int) *Record {
	rec := c.slots[slot]
	c.slots[slot] = nil
	if rec != nil {
		if b := rec.switchToStrong(); b != nil && b.Capacity() >= size {
			b.Clear()
			c.stats.Hits++
			return rec
		}
	} else {
		rec = &Record{}
	}
	c.stats.Misses++
	rec.reset(c.mm.AllocateDirect(size))
	return rec
}

// Release clears the record's buffer, downgrades it to a weak handle and
// puts it back into slot, replacing whatever was cached there.
func (c *ThreadCache) Release(slot Slot, rec *Record) {
	if rec == nil {
		return
	}
	if b := rec.strong; b != nil {
		b.Clear()
	}
	rec.switchToWeak()
	c.slots[slot] = rec
}

// Stats returns obtain counters.
func (c *ThreadCache) Stats() CacheStats { return c.stats }
