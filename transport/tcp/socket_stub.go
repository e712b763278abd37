//go:build !linux
// +build !linux

// File: transport/tcp/socket_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"net"
	"time"

	"github.com/momentics/hioload-nio/api"
)

type stubFactory struct{}

func defaultFactory() channelFactory { return stubFactory{} }

func (stubFactory) Listen(*net.TCPAddr, int, bool, time.Duration) (ServerChannel, error) {
	return nil, api.ErrNotSupported
}

func (stubFactory) Dial(*net.TCPAddr, *net.TCPAddr, bool) (pendingConnect, bool, error) {
	return nil, false, api.ErrNotSupported
}

func (stubFactory) Options(int) SocketOptions { return nil }
