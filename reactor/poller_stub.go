// File: reactor/poller_stub.go
//go:build !linux

// Package reactor — stub poller for platforms without epoll support.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "github.com/momentics/reactor-ws/api"

func newPoller() (poller, error) {
	return nil, api.ErrNotSupported
}
