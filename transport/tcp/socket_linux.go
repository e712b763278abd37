//go:build linux
// +build linux

// File: transport/tcp/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw non-blocking sockets over x/sys/unix.

package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-nio/api"
)

type unixFactory struct{}

func defaultFactory() channelFactory { return unixFactory{} }

func (unixFactory) Options(fd int) SocketOptions { return fdOptions(fd) }

func (unixFactory) Listen(addr *net.TCPAddr, backlog int, reuse bool, timeout time.Duration) (ServerChannel, error) {
	family, sa := toSockaddr(addr)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	opts := fdOptions(fd)
	if err := opts.SetReuseAddress(reuse); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if timeout > 0 {
		if err := opts.SetReadTimeout(timeout); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblock: %w", err)
	}
	local, _ := unix.Getsockname(fd)
	return &listenSocket{fd: fd, addr: fromSockaddr(local)}, nil
}

func (unixFactory) Dial(remote, local *net.TCPAddr, reuse bool) (pendingConnect, bool, error) {
	family, rsa := toSockaddr(remote)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, false, fmt.Errorf("socket: %w", err)
	}
	if local != nil {
		if reuse {
			_ = fdOptions(fd).SetReuseAddress(true)
		}
		_, lsa := toSockaddr(local)
		if err := unix.Bind(fd, lsa); err != nil {
			unix.Close(fd)
			return nil, false, fmt.Errorf("bind %s: %w", local, err)
		}
	}
	s := &streamSocket{fd: fd}
	switch err := unix.Connect(fd, rsa); {
	case err == nil:
		s.resolveAddrs()
		return s, true, nil
	case errors.Is(err, unix.EINPROGRESS), errors.Is(err, unix.EINTR):
		return s, false, nil
	default:
		unix.Close(fd)
		return nil, false, fmt.Errorf("connect %s: %w", remote, err)
	}
}

type listenSocket struct {
	fd   int
	addr net.Addr
	ref  fdRef
}

func (l *listenSocket) FD() int        { return l.fd }
func (l *listenSocket) Addr() net.Addr { return l.addr }

func (l *listenSocket) Accept() (SocketChannel, error) {
	if !l.ref.incref() {
		return nil, api.ErrConnectionClosed
	}
	defer l.decref()
	for {
		nfd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == nil:
			s := &streamSocket{fd: nfd}
			s.resolveAddrs()
			return s, nil
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
			continue
		case errors.Is(err, unix.EAGAIN):
			return nil, nil
		default:
			return nil, fmt.Errorf("accept: %w", err)
		}
	}
}

func (l *listenSocket) decref() {
	if l.ref.decref() {
		unix.Close(l.fd)
	}
}

// Close closes the descriptor now, or when the Accept in flight returns.
func (l *listenSocket) Close() error {
	if first, idle := l.ref.markClosing(); first && idle {
		return unix.Close(l.fd)
	}
	return nil
}

// streamSocket pins its descriptor for every call, so a close racing with
// a read or write never lets the call reach a reused descriptor number.
type streamSocket struct {
	fd     int
	local  net.Addr
	remote net.Addr
	ref    fdRef
}

func (s *streamSocket) decref() {
	if s.ref.decref() {
		unix.Close(s.fd)
	}
}

func (s *streamSocket) resolveAddrs() {
	if sa, err := unix.Getsockname(s.fd); err == nil {
		s.local = fromSockaddr(sa)
	}
	if sa, err := unix.Getpeername(s.fd); err == nil {
		s.remote = fromSockaddr(sa)
	}
}

func (s *streamSocket) FD() int              { return s.fd }
func (s *streamSocket) LocalAddr() net.Addr  { return s.local }
func (s *streamSocket) RemoteAddr() net.Addr { return s.remote }

func (s *streamSocket) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !s.ref.incref() {
		return 0, api.ErrConnectionClosed
	}
	defer s.decref()
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case err == nil && n == 0:
			return 0, io.EOF
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, nil
		default:
			return 0, err
		}
	}
}

func (s *streamSocket) ReadVector(v [][]byte) (int, error) {
	if len(v) == 0 {
		return 0, nil
	}
	if !s.ref.incref() {
		return 0, api.ErrConnectionClosed
	}
	defer s.decref()
	for {
		n, err := unix.Readv(s.fd, v)
		switch {
		case err == nil && n == 0:
			return 0, io.EOF
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, nil
		default:
			return 0, err
		}
	}
}

func (s *streamSocket) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !s.ref.incref() {
		return 0, api.ErrConnectionClosed
	}
	defer s.decref()
	for {
		n, err := unix.Write(s.fd, p)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, nil
		default:
			return 0, err
		}
	}
}

func (s *streamSocket) FinishConnect() error {
	if !s.ref.incref() {
		return api.ErrConnectionClosed
	}
	defer s.decref()
	v, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	s.resolveAddrs()
	return nil
}

// Close closes the descriptor now, or when the last call in flight returns.
func (s *streamSocket) Close() error {
	if first, idle := s.ref.markClosing(); first && idle {
		return unix.Close(s.fd)
	}
	return nil
}

type fdOptions int

func (o fdOptions) SetLinger(seconds int) error {
	l := unix.Linger{Onoff: 1, Linger: int32(seconds)}
	return unix.SetsockoptLinger(int(o), unix.SOL_SOCKET, unix.SO_LINGER, &l)
}

func (o fdOptions) SetKeepAlive(on bool) error {
	return unix.SetsockoptInt(int(o), unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolInt(on))
}

func (o fdOptions) SetNoDelay(on bool) error {
	return unix.SetsockoptInt(int(o), unix.IPPROTO_TCP, unix.TCP_NODELAY, boolInt(on))
}

func (o fdOptions) SetReuseAddress(on bool) error {
	return unix.SetsockoptInt(int(o), unix.SOL_SOCKET, unix.SO_REUSEADDR, boolInt(on))
}

func (o fdOptions) SetNonblocking(on bool) error {
	return unix.SetNonblock(int(o), on)
}

func (o fdOptions) SetReadTimeout(d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return unix.SetsockoptTimeval(int(o), unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
}

func (o fdOptions) SetWriteTimeout(d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return unix.SetsockoptTimeval(int(o), unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toSockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil || addr.IP == nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return unix.AF_INET6, sa
}

func fromSockaddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), a.Addr[:]...)), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), a.Addr[:]...)), Port: a.Port}
	default:
		return nil
	}
}
