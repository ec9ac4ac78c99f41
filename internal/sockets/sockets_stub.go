// File: internal/sockets/sockets_stub.go
//go:build !linux

// Package sockets — stub for platforms without the epoll reactor.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockets

import "github.com/momentics/reactor-ws/api"

func Listen(addr string) (int, error)        { return -1, api.ErrNotSupported }
func Accept(lfd int) (int, error)            { return -1, api.ErrNotSupported }
func Connect(addr string) (int, bool, error) { return -1, false, api.ErrNotSupported }
func Read(fd int, p []byte) (int, error)     { return 0, api.ErrNotSupported }
func Write(fd int, p []byte) (int, error)    { return 0, api.ErrNotSupported }
func SockErr(fd int) error                   { return api.ErrNotSupported }
func ShutdownWrite(fd int) error             { return api.ErrNotSupported }
func Close(fd int) error                     { return api.ErrNotSupported }
func LocalAddr(fd int) (string, error)       { return "", api.ErrNotSupported }
