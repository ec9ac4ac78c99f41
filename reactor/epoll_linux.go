// File: reactor/epoll_linux.go
//go:build linux

// Package reactor — Linux epoll poller.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Level-triggered epoll with an eventfd for cross-goroutine wakeups.
// Level triggering pairs with the reactor's bounded per-wakeup reads:
// unread bytes simply re-notify on the next wait.

package reactor

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	epfd   int
	wakefd int
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	p := &epollPoller{epfd: epfd, wakefd: wakefd}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("epoll ctl add wakefd: %w", err)
	}
	return p, nil
}

func (p *epollPoller) interest(writable bool) uint32 {
	events := uint32(unix.EPOLLIN | unix.EPOLLRDHUP)
	if writable {
		events |= unix.EPOLLOUT
	}
	return events
}

func (p *epollPoller) Add(fd int, writable bool) error {
	ev := unix.EpollEvent{Events: p.interest(writable), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

func (p *epollPoller) Mod(fd int, writable bool) error {
	ev := unix.EpollEvent{Events: p.interest(writable), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

func (p *epollPoller) Del(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (p *epollPoller) Wait(evs []pollEvent, timeoutMs int) (int, error) {
	raw := make([]unix.EpollEvent, len(evs))
	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		evs[i] = pollEvent{
			fd:       int(raw[i].Fd),
			readable: raw[i].Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0,
			writable: raw[i].Events&unix.EPOLLOUT != 0,
			errored:  raw[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		}
	}
	return n, nil
}

func (p *epollPoller) WakeFD() int { return p.wakefd }

func (p *epollPoller) Wakeup() error {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(p.wakefd, one[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

func (p *epollPoller) DrainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wakefd, buf[:])
}

func (p *epollPoller) Close() error {
	_ = unix.Close(p.wakefd)
	return unix.Close(p.epfd)
}
