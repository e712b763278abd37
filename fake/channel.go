// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"io"
	"net"
	"sync"
)

// Channel is a scripted non-blocking stream socket.
//
// Reads are served from fed chunks, one chunk (or part of it) per call; an
// empty chunk answers one call with "no data". With nothing fed a read
// reports no data, or io.EOF once SetEOF was called.
//
// Writes accept bytes up to a per-call limit taken from SetWriteLimits, in
// order; once the script is exhausted every write accepts everything.
type Channel struct {
	mu sync.Mutex

	fd     int
	local  net.Addr
	remote net.Addr

	chunks    [][]byte
	eof       bool
	readErr   error
	readCalls int

	written    []byte
	writeCalls []int
	limits     []int
	writeErr   error
	errAfter   int
	writeGate  <-chan struct{}

	closed     bool
	closeErr   error
	connectErr error
}

// NewChannel creates a channel reporting fd.
func NewChannel(fd int) *Channel {
	return &Channel{
		fd:     fd,
		local:  &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000 + fd},
		remote: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080},
	}
}

// Feed queues p as one arrival.
func (c *Channel) Feed(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, append([]byte{}, p...))
}

// FeedNoData makes one read call report no data.
func (c *Channel) FeedNoData() { c.Feed(nil) }

// SetEOF reports end of stream once fed data is consumed.
func (c *Channel) SetEOF() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eof = true
}

// SetReadError makes subsequent reads fail with err.
func (c *Channel) SetReadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

// ReadCalls returns the number of Read and ReadVector calls.
func (c *Channel) ReadCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readCalls
}

func (c *Channel) Read(p []byte) (int, error) {
	return c.ReadVector([][]byte{p})
}

func (c *Channel) ReadVector(v [][]byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readCalls++
	if c.readErr != nil {
		return 0, c.readErr
	}
	if len(c.chunks) == 0 {
		if c.eof {
			return 0, io.EOF
		}
		return 0, nil
	}
	chunk := c.chunks[0]
	n := 0
	for _, dst := range v {
		k := copy(dst, chunk[n:])
		n += k
		if n == len(chunk) {
			break
		}
	}
	if n == len(chunk) {
		c.chunks = c.chunks[1:]
	} else {
		c.chunks[0] = chunk[n:]
	}
	return n, nil
}

// SetWriteLimits scripts how many bytes successive writes accept.
func (c *Channel) SetWriteLimits(limits ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits = append(c.limits[:0], limits...)
}

// SetWriteError makes subsequent writes fail with err.
func (c *Channel) SetWriteError(err error) {
	c.SetWriteErrorAfter(0, err)
}

// SetWriteErrorAfter lets calls more writes succeed, then fails with err.
func (c *Channel) SetWriteErrorAfter(calls int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
	c.errAfter = len(c.writeCalls) + calls
}

// HoldWrites makes each write wait until gate is closed.
func (c *Channel) HoldWrites(gate <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeGate = gate
}

func (c *Channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	gate := c.writeGate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil && len(c.writeCalls) >= c.errAfter {
		return 0, c.writeErr
	}
	n := len(p)
	if len(c.limits) > 0 {
		n = min(n, c.limits[0])
		c.limits = c.limits[1:]
	}
	c.written = append(c.written, p[:n]...)
	c.writeCalls = append(c.writeCalls, n)
	return n, nil
}

// Written returns every accepted byte in order.
func (c *Channel) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte{}, c.written...)
}

// WriteCalls returns the bytes accepted by each write call.
func (c *Channel) WriteCalls() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int{}, c.writeCalls...)
}

// SetConnectError makes FinishConnect fail.
func (c *Channel) SetConnectError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErr = err
}

// FinishConnect reports the scripted connect outcome.
func (c *Channel) FinishConnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectErr
}

// SetCloseError makes Close fail with err.
func (c *Channel) SetCloseError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeErr = err
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

// Closed reports whether Close was called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) FD() int              { return c.fd }
func (c *Channel) LocalAddr() net.Addr  { return c.local }
func (c *Channel) RemoteAddr() net.Addr { return c.remote }
