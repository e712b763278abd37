// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"
	"time"
)

// SocketOptions records applied socket options and fails the ones named in
// Fail.
type SocketOptions struct {
	mu      sync.Mutex
	applied map[string]any
	fail    map[string]error
}

// NewSocketOptions creates an option recorder.
func NewSocketOptions() *SocketOptions {
	return &SocketOptions{applied: make(map[string]any), fail: make(map[string]error)}
}

// FailOn makes option fail with err.
func (o *SocketOptions) FailOn(option string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail[option] = err
}

// Applied returns the value set for option, if it was applied.
func (o *SocketOptions) Applied(option string) (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.applied[option]
	return v, ok
}

func (o *SocketOptions) set(option string, v any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.fail[option]; err != nil {
		return err
	}
	o.applied[option] = v
	return nil
}

func (o *SocketOptions) SetLinger(seconds int) error           { return o.set("linger", seconds) }
func (o *SocketOptions) SetKeepAlive(on bool) error            { return o.set("keepAlive", on) }
func (o *SocketOptions) SetNoDelay(on bool) error              { return o.set("tcpNoDelay", on) }
func (o *SocketOptions) SetReuseAddress(on bool) error         { return o.set("reuseAddress", on) }
func (o *SocketOptions) SetNonblocking(on bool) error          { return o.set("nonBlocking", on) }
func (o *SocketOptions) SetReadTimeout(d time.Duration) error  { return o.set("readTimeout", d) }
func (o *SocketOptions) SetWriteTimeout(d time.Duration) error { return o.set("writeTimeout", d) }
