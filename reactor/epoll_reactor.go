//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-nio/api"
)

// epollPoller registers channels with EPOLLONESHOT; a fired descriptor stays
// disarmed until the runner re-arms it.
type epollPoller struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wake: %w", err)
	}
	return &epollPoller{epfd: epfd, wakefd: wakefd, raw: make([]unix.EpollEvent, maxEvents)}, nil
}

func toEpoll(interest api.Interest) uint32 {
	var events uint32 = unix.EPOLLONESHOT
	if interest&(api.InterestRead|api.InterestAccept) != 0 {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest&(api.InterestWrite|api.InterestConnect) != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func fromEpoll(events uint32) api.Interest {
	var ready api.Interest
	if events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
		ready |= api.InterestRead
	}
	if events&unix.EPOLLOUT != 0 {
		ready |= api.InterestWrite
	}
	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		ready |= api.InterestError
	}
	return ready
}

func (p *epollPoller) add(fd int, interest api.Interest) error {
	ev := unix.EpollEvent{Events: toEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

func (p *epollPoller) mod(fd int, interest api.Interest) error {
	ev := unix.EpollEvent{Events: toEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

func (p *epollPoller) del(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (p *epollPoller) wait(events []readyEvent) (int, error) {
	raw := p.raw
	if len(events) < len(raw) {
		raw = raw[:len(events)]
	}
	n, err := unix.EpollWait(p.epfd, raw, -1)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	out := 0
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == p.wakefd {
			p.drainWake()
			continue
		}
		events[out] = readyEvent{fd: fd, ready: fromEpoll(raw[i].Events)}
		out++
	}
	return out, nil
}

func (p *epollPoller) wake() error {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	_, err := unix.Write(p.wakefd, one[:])
	if errors.Is(err, unix.EAGAIN) {
		// counter saturated, a wake is already pending
		return nil
	}
	return err
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wakefd, buf[:])
}

func (p *epollPoller) close() error {
	errWake := unix.Close(p.wakefd)
	errEp := unix.Close(p.epfd)
	return errors.Join(errWake, errEp)
}
