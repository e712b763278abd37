// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

//go:build linux
// +build linux

package tcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-nio/api"
)

func streamPair(t *testing.T) (*streamSocket, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Close(fds[1]) })
	return &streamSocket{fd: fds[0]}, fds[1]
}

// peerSeesEOF reports whether the peer of s observes the close.
func peerSeesEOF(t *testing.T, peer int) bool {
	t.Helper()
	n, err := unix.Read(peer, make([]byte, 8))
	if err == unix.EAGAIN {
		return false
	}
	require.NoError(t, err)
	return n == 0
}

func TestStreamSocket_ClosedRejectsCalls(t *testing.T) {
	s, _ := streamPair(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Write([]byte("x"))
	assert.ErrorIs(t, err, api.ErrConnectionClosed)
	_, err = s.Read(make([]byte, 1))
	assert.ErrorIs(t, err, api.ErrConnectionClosed)
	_, err = s.ReadVector([][]byte{make([]byte, 1)})
	assert.ErrorIs(t, err, api.ErrConnectionClosed)
	assert.ErrorIs(t, s.FinishConnect(), api.ErrConnectionClosed)
}

func TestStreamSocket_CloseDeferredWhileHeld(t *testing.T) {
	s, peer := streamPair(t)
	require.True(t, s.ref.incref())

	require.NoError(t, s.Close())
	assert.False(t, peerSeesEOF(t, peer), "descriptor released while a call held it")

	s.decref()
	assert.True(t, peerSeesEOF(t, peer))
}

func TestStreamSocket_ReadWrite(t *testing.T) {
	s, peer := streamPair(t)
	defer s.Close()

	n, err := s.Read(make([]byte, 4))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = unix.Write(peer, []byte("ping"))
	require.NoError(t, err)
	got := make([]byte, 4)
	n, err = s.Read(got)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got[:n]))

	n, err = s.Write([]byte("pong"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Zero(t, s.ref.refs())
}
