// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Hot reload: configuration changes applied to every registered transport,
// followed by the reload listeners.

package control

import (
	"sync"

	"github.com/momentics/hioload-nio/transport/tcp"
)

// Reloader propagates configuration updates to transports.
type Reloader struct {
	mu         sync.Mutex
	transports []*tcp.Transport
	listeners  []func()
}

// NewReloader creates a reloader over transports.
func NewReloader(transports ...*tcp.Transport) *Reloader {
	return &Reloader{transports: transports}
}

// Add registers another transport.
func (r *Reloader) Add(t *tcp.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports = append(r.transports, t)
}

// OnReload registers a listener hook called after every reload.
func (r *Reloader) OnReload(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Reload applies fn through Reconfigure on every transport, then runs the
// listeners synchronously. Connections created afterwards see the change.
func (r *Reloader) Reload(fn func(*tcp.Config)) {
	r.mu.Lock()
	transports := append([]*tcp.Transport(nil), r.transports...)
	listeners := append([]func(){}, r.listeners...)
	r.mu.Unlock()

	for _, t := range transports {
		t.Reconfigure(fn)
	}
	for _, l := range listeners {
		l()
	}
}
