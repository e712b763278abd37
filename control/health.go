// control/health.go
// Author: momentics <momentics@gmail.com>
//
// Liveness and readiness endpoints over heptiolabs/healthcheck.

package control

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"

	"github.com/momentics/hioload-nio/api"
)

// StateSource is anything reporting a lifecycle state under a name.
type StateSource interface {
	Name() string
	State() api.State
}

// DefaultGoroutineLimit is the liveness threshold used by NewHealthHandler.
const DefaultGoroutineLimit = 100000

// ReadinessCheck fails unless src is STARTED.
func ReadinessCheck(src StateSource) healthcheck.Check {
	return func() error {
		if s := src.State(); s != api.StateStarted {
			return fmt.Errorf("transport %s is %s", src.Name(), s)
		}
		return nil
	}
}

// NewHealthHandler serves /live and /ready. Each source adds one readiness
// check named after it; liveness guards the goroutine count.
func NewHealthHandler(sources ...StateSource) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(DefaultGoroutineLimit))
	for _, src := range sources {
		h.AddReadinessCheck("transport-"+src.Name(), ReadinessCheck(src))
	}
	return h
}
