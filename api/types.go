// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

// State enumerates the lifecycle states of a transport.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateStarted
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
