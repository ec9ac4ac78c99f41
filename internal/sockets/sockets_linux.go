// File: internal/sockets/sockets_linux.go
//go:build linux

// Package sockets wraps the raw non-blocking TCP socket operations the
// reactor needs, over golang.org/x/sys/unix.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Every operation is non-blocking; a would-block result is reported as
// ErrAgain and simply defers to the next readiness notification.

package sockets

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Listen binds a non-blocking listening TCP socket on addr.
func Listen(addr string) (int, error) {
	sa, family, err := resolveSockaddr(addr)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket create: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("listen %s: %w", addr, err)
	}
	return fd, nil
}

// Accept takes one pending connection off a listening socket. The new
// socket is non-blocking with Nagle disabled. Returns ErrAgain when the
// accept queue is drained.
func Accept(lfd int) (int, error) {
	fd, _, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return -1, ErrAgain
		}
		return -1, fmt.Errorf("accept: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return fd, nil
}

// Connect starts a non-blocking connect to addr. inProgress reports
// that the connect has not finished yet; completion surfaces as a
// writable readiness event, checked with SockErr.
func Connect(addr string) (fd int, inProgress bool, err error) {
	sa, family, err := resolveSockaddr(addr)
	if err != nil {
		return -1, false, err
	}
	fd, err = unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, false, fmt.Errorf("socket create: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	if err := unix.Connect(fd, sa); err != nil {
		if err == unix.EINPROGRESS {
			return fd, true, nil
		}
		_ = unix.Close(fd)
		return -1, false, fmt.Errorf("connect %s: %w", addr, err)
	}
	return fd, false, nil
}

// Read reads available bytes. (0, nil) signals EOF; ErrAgain signals
// that the socket has no more bytes this wakeup.
func Read(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrAgain
		}
		if err == unix.EINTR {
			return 0, ErrAgain
		}
		return 0, fmt.Errorf("read: %w", err)
	}
	return n, nil
}

// Write writes as many bytes as the socket accepts. A short count with
// nil error is normal; ErrAgain means nothing could be written.
func Write(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, ErrAgain
		}
		return 0, fmt.Errorf("write: %w", err)
	}
	return n, nil
}

// SockErr fetches and clears the pending socket error, used to resolve
// the outcome of a non-blocking connect.
func SockErr(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fmt.Errorf("getsockopt SO_ERROR: %w", err)
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}

// ShutdownWrite half-closes the socket once the close frame has flushed.
func ShutdownWrite(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_WR)
}

// Close releases the socket.
func Close(fd int) error {
	return unix.Close(fd)
}

// LocalAddr formats the socket's bound address, for reporting the
// actual port after listening on ":0".
func LocalAddr(fd int) (string, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return "", fmt.Errorf("getsockname: %w", err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(a.Addr[:])
		return net.JoinHostPort(ip.String(), fmt.Sprint(a.Port)), nil
	case *unix.SockaddrInet6:
		ip := net.IP(a.Addr[:])
		return net.JoinHostPort(ip.String(), fmt.Sprint(a.Port)), nil
	default:
		return "", fmt.Errorf("unexpected sockaddr type %T", sa)
	}
}

// resolveSockaddr maps a host:port string onto a unix.Sockaddr.
func resolveSockaddr(addr string) (unix.Sockaddr, int, error) {
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve %s: %w", addr, err)
	}
	ip := tcp.IP
	if ip == nil {
		ip = net.IPv4zero
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: tcp.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	sa := &unix.SockaddrInet6{Port: tcp.Port}
	copy(sa.Addr[:], ip.To16())
	return sa, unix.AF_INET6, nil
}
