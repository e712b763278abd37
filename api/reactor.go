// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Readiness interest masks and the I/O events a reactor delivers.

package api

import "strings"

// Interest is a bitmask of readiness conditions a channel is monitored for.
type Interest uint32

const (
	InterestRead Interest = 1 << iota
	InterestWrite
	InterestAccept
	InterestConnect
	// InterestError is reported only; it cannot be registered.
	InterestError
)

func (i Interest) String() string {
	if i == 0 {
		return "none"
	}
	var parts []string
	if i&InterestRead != 0 {
		parts = append(parts, "read")
	}
	if i&InterestWrite != 0 {
		parts = append(parts, "write")
	}
	if i&InterestAccept != 0 {
		parts = append(parts, "accept")
	}
	if i&InterestConnect != 0 {
		parts = append(parts, "connect")
	}
	if i&InterestError != 0 {
		parts = append(parts, "error")
	}
	return strings.Join(parts, "|")
}

// IOEvent identifies what happened on a connection.
type IOEvent int

const (
	EventNone IOEvent = iota
	EventServerAccept
	EventClientConnected
	EventRead
	EventWrite
)

func (e IOEvent) String() string {
	switch e {
	case EventServerAccept:
		return "SERVER_ACCEPT"
	case EventClientConnected:
		return "CLIENT_CONNECTED"
	case EventRead:
		return "READ"
	case EventWrite:
		return "WRITE"
	default:
		return "NONE"
	}
}

// Interest returns the readiness interest that produces the event.
func (e IOEvent) Interest() Interest {
	switch e {
	case EventServerAccept:
		return InterestAccept
	case EventClientConnected:
		return InterestConnect
	case EventRead:
		return InterestRead
	case EventWrite:
		return InterestWrite
	default:
		return 0
	}
}

// IOEventReg tells the reactor whether to keep monitoring after an event.
type IOEventReg int

const (
	Register IOEventReg = iota
	Deregister
)

func (r IOEventReg) String() string {
	if r == Register {
		return "REGISTER"
	}
	return "DEREGISTER"
}
