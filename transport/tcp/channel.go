// File: transport/tcp/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel contracts between the engines and the operating system.

package tcp

import (
	"net"
	"time"
)

// SocketChannel is a connected non-blocking stream socket.
//
// Read and ReadVector return (0, nil) when no data is available and io.EOF
// once the peer has closed. Write returns (0, nil) when the send buffer is
// full. Any other error is a channel failure.
type SocketChannel interface {
	Read(p []byte) (int, error)
	ReadVector(v [][]byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	FD() int
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// ServerChannel is a listening socket. Accept returns (nil, nil) when no
// connection is pending.
type ServerChannel interface {
	Accept() (SocketChannel, error)
	Close() error
	FD() int
	Addr() net.Addr
}

// SocketOptions is the option surface used by ChannelConfigurer.
type SocketOptions interface {
	SetLinger(seconds int) error
	SetKeepAlive(on bool) error
	SetNoDelay(on bool) error
	SetReuseAddress(on bool) error
	SetNonblocking(on bool) error
	SetReadTimeout(d time.Duration) error
	SetWriteTimeout(d time.Duration) error
}

// pendingConnect is an outbound socket whose connect is in progress.
type pendingConnect interface {
	SocketChannel
	// FinishConnect reports the asynchronous connect outcome.
	FinishConnect() error
}

// channelFactory opens OS sockets. Tests replace it.
type channelFactory interface {
	Listen(addr *net.TCPAddr, backlog int, reuse bool, timeout time.Duration) (ServerChannel, error)
	// Dial starts a non-blocking connect. done is true when the connect
	// completed immediately.
	Dial(remote, local *net.TCPAddr, reuse bool) (ch pendingConnect, done bool, err error)
	Options(fd int) SocketOptions
}
