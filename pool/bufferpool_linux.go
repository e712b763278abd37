//go:build linux
// +build linux

// Package pool
// Author: momentics <momentics@gmail.com>
//
// Linux-specific direct buffers backed by anonymous private mappings.

package pool

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-nio/core/buffer"
)

// allocateDirect maps page-rounded anonymous memory outside the Go heap.
// The mapping is unmapped by a cleanup once the buffer is unreachable.
func allocateDirect(size int) *buffer.ByteBuffer {
	if size <= 0 {
		return buffer.New(nil, true, nil)
	}
	page := unix.Getpagesize()
	length := (size + page - 1) / page * page
	mem, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		// fallback: regular slice, still treated as direct by the engine
		return buffer.New(make([]byte, size), true, nil)
	}
	b := buffer.New(mem[:size], true, nil)
	runtime.AddCleanup(b, func(m []byte) { _ = unix.Munmap(m) }, mem)
	return b
}
