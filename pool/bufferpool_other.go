//go:build !linux
// +build !linux

// Package pool
// Author: momentics <momentics@gmail.com>
//
// Fallback direct buffers for platforms without an mmap-backed allocator.

package pool

import "github.com/momentics/hioload-nio/core/buffer"

func allocateDirect(size int) *buffer.ByteBuffer {
	return buffer.New(make([]byte, size), true, nil)
}
