// File: api/control.go
// Package api defines the monitoring probe contracts.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// TransportProbe receives fire-and-forget lifecycle notifications.
type TransportProbe interface {
	OnStart(name string)
	OnStop(name string)
	OnPause(name string)
	OnResume(name string)
	OnConfigChange(name string)
}

// ConnectionProbe receives fire-and-forget per-connection notifications.
type ConnectionProbe interface {
	OnAccept(conn string)
	OnConnect(conn string)
	OnRead(conn string, n int)
	OnWrite(conn string, n int)
	OnClose(conn string)
	OnError(conn string, err error)
}

// Probe is the full monitoring sink accepted by a transport.
type Probe interface {
	TransportProbe
	ConnectionProbe
}
