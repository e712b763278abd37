// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"fmt"
	"strings"
	"sync"

	"github.com/momentics/hioload-nio/api"
)

// Probe records every notification as a "kind:args" string.
type Probe struct {
	mu     sync.Mutex
	events []string
}

var _ api.Probe = (*Probe)(nil)

func (p *Probe) record(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf(format, args...))
}

// Events returns the recorded notifications in order.
func (p *Probe) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.events...)
}

// Count returns how many notifications start with prefix.
func (p *Probe) Count(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

func (p *Probe) OnStart(name string)            { p.record("start:%s", name) }
func (p *Probe) OnStop(name string)             { p.record("stop:%s", name) }
func (p *Probe) OnPause(name string)            { p.record("pause:%s", name) }
func (p *Probe) OnResume(name string)           { p.record("resume:%s", name) }
func (p *Probe) OnConfigChange(name string)     { p.record("config:%s", name) }
func (p *Probe) OnAccept(conn string)           { p.record("accept:%s", conn) }
func (p *Probe) OnConnect(conn string)          { p.record("connect:%s", conn) }
func (p *Probe) OnRead(conn string, n int)      { p.record("read:%s:%d", conn, n) }
func (p *Probe) OnWrite(conn string, n int)     { p.record("write:%s:%d", conn, n) }
func (p *Probe) OnClose(conn string)            { p.record("close:%s", conn) }
func (p *Probe) OnError(conn string, err error) { p.record("error:%s:%v", conn, err) }
