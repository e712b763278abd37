// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug handler and probe reflector for internal inspection.

package control

import (
	"sort"
	"sync"

	"github.com/momentics/hioload-nio/internal/concurrency"
	"github.com/momentics/hioload-nio/transport/tcp"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.probes))
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}

// RegisterTransport adds state, runner and listener probes for t under
// "transport.<name>.".
func (dp *DebugProbes) RegisterTransport(t *tcp.Transport) {
	prefix := "transport." + t.Name() + "."
	dp.RegisterProbe(prefix+"state", func() any { return t.State().String() })
	dp.RegisterProbe(prefix+"runners", func() any { return t.Runners() })
	dp.RegisterProbe(prefix+"listeners", func() any {
		var addrs []string
		for _, sc := range t.ServerConnections() {
			addrs = append(addrs, sc.Addr().String())
		}
		sort.Strings(addrs)
		return addrs
	})
}

// RegisterPlatformProbes adds host facts used to size reactors.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any { return concurrency.NumCPUs() })
	dp.RegisterProbe("platform.defaultRunners", func() any { return concurrency.DefaultRunnerCount() })
}
